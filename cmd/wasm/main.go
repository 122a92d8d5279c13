//go:build js && wasm

// Command wasm exposes offline chunking and lexical search to the browser.
package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"unirag/config"
	"unirag/internal/adapter/chunker"
	"unirag/internal/adapter/retriever"
	"unirag/internal/domain"
	"unirag/internal/port"
)

var (
	corpus = &domain.Corpus{}
	chk    *chunker.WindowChunker
	search port.Retriever
)

func init() {
	defaults := config.DefaultConfig()
	chk, _ = chunker.NewWindowChunker(defaults.Corpus.ChunkSize, defaults.Corpus.ChunkOverlap)
	search, _ = retriever.New(retriever.Options{
		Strategy:    "lexical",
		MinTokenLen: defaults.Retrieve.MinTokenLen,
	})
}

func main() {
	c := make(chan struct{})

	js.Global().Set("ragIndex", js.FuncOf(indexContent))
	js.Global().Set("ragQuery", js.FuncOf(queryContent))
	js.Global().Set("ragClear", js.FuncOf(clearIndex))
	js.Global().Set("ragStats", js.FuncOf(getStats))

	<-c
}

// indexContent chunks a document into the in-page corpus. Indexing the same
// source twice replaces its earlier chunks.
func indexContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: ragIndex(source, content)")
	}

	source := args[0].String()
	content := args[1].String()

	chunks, err := chk.Chunk(source, content)
	if err != nil {
		return makeError("chunking failed: " + err.Error())
	}

	next := &domain.Corpus{}
	for _, c := range corpus.Chunks {
		if c.Source != source {
			next.Chunks = append(next.Chunks, c)
		}
	}
	next.Chunks = append(next.Chunks, chunks...)
	seen := make(map[string]bool)
	for _, c := range next.Chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			next.Sources = append(next.Sources, c.Source)
		}
	}
	corpus = next

	return makeResult(map[string]interface{}{
		"success": true,
		"chunks":  len(chunks),
		"source":  source,
	})
}

func queryContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: ragQuery(query, [topK])")
	}

	query := args[0].String()
	topK := 3
	if len(args) > 1 {
		topK = args[1].Int()
	}
	if topK <= 0 {
		return makeError("topK must be positive")
	}

	results, err := search.Search(context.Background(), corpus, query, topK)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}

	output := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		output = append(output, map[string]interface{}{
			"source":   r.Chunk.Source,
			"sequence": r.Chunk.Sequence,
			"score":    r.Score,
			"text":     r.Chunk.Text,
		})
	}

	return makeResult(map[string]interface{}{
		"results": output,
		"query":   query,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	corpus = &domain.Corpus{}
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	return makeResult(map[string]interface{}{
		"totalChunks": corpus.Len(),
		"sources":     corpus.Sources,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
