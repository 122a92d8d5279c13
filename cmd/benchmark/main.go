package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"unirag/config"
	"unirag/internal/adapter/embedding"
	"unirag/internal/adapter/retriever"
	"unirag/internal/adapter/store"
	"unirag/internal/domain"
	"unirag/internal/port"
)

// evalCase is one labelled query: the chunk ids a good retriever should return.
type evalCase struct {
	Query    string   `json:"query"`
	Relevant []string `json:"relevant"`
}

type scores struct {
	precision, recall, mrr, ndcg float64
	n                            int
}

func main() {
	dir := flag.String("dir", ".", "Directory containing unirag.yaml")
	corpusPath := flag.String("corpus", "", "Snapshot path (default from config)")
	evalPath := flag.String("eval", "", "JSON file with [{\"query\": ..., \"relevant\": [ids]}]")
	query := flag.String("q", "", "Single query to inspect across strategies")
	topK := flag.Int("k", 3, "Number of results")
	flag.Parse()

	if *query == "" && *evalPath == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -eval eval.json [-k 3]")
		fmt.Println("       go run ./cmd/benchmark -q \"hostel fees\"")
		fmt.Println("\nCompares lexical, vector and hybrid retrieval on the same corpus:")
		fmt.Println("  precision@k, recall@k, MRR and nDCG@k for labelled queries")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath == "" {
		*corpusPath = cfg.Corpus.Path
		if !filepath.IsAbs(*corpusPath) {
			*corpusPath = filepath.Join(*dir, *corpusPath)
		}
	}

	corpus, err := store.LoadCorpus(*corpusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
		os.Exit(1)
	}

	retrievers := setupRetrievers(cfg, corpus)

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Corpus: %s (%d chunks, dimension %d)\n\n", *corpusPath, corpus.Len(), corpus.Dimension)

	ctx := context.Background()
	if *query != "" {
		inspect(ctx, retrievers, corpus, *query, *topK)
		return
	}

	cases, err := loadEval(*evalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading eval set: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-8s %10s %10s %8s %8s\n", "strategy", "P@k", "R@k", "MRR", "nDCG")
	fmt.Println(strings.Repeat("-", 70))
	for _, r := range retrievers {
		s := evaluate(ctx, r, corpus, cases, *topK)
		if s.n == 0 {
			fmt.Printf("%-8s  unavailable\n", r.Strategy())
			continue
		}
		n := float64(s.n)
		fmt.Printf("%-8s %10.3f %10.3f %8.3f %8.3f\n", r.Strategy(), s.precision/n, s.recall/n, s.mrr/n, s.ndcg/n)
	}
}

func setupRetrievers(cfg *config.Config, corpus *domain.Corpus) []port.Retriever {
	base := retriever.Options{
		MinTokenLen:   cfg.Retrieve.MinTokenLen,
		RRFK:          cfg.Retrieve.RRFK,
		LexicalWeight: cfg.Retrieve.LexicalWeight,
	}

	lexical := base
	lexical.Strategy = "lexical"
	r, _ := retriever.New(lexical)
	out := []port.Retriever{r}

	if !corpus.HasVectors() {
		fmt.Println("Corpus has no vectors: vector and hybrid strategies skipped")
		return out
	}

	embedCfg := cfg.Embedding
	embedCfg.Enabled = true
	embedder, err := embedding.New(embedCfg)
	if err != nil {
		slog.Warn("embedder unavailable", "error", err)
		return out
	}

	for _, strategy := range []string{"vector", "hybrid"} {
		opts := base
		opts.Strategy = strategy
		opts.Embedder = embedder
		if r, err := retriever.New(opts); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func loadEval(path string) ([]evalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []evalCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func evaluate(ctx context.Context, r port.Retriever, corpus *domain.Corpus, cases []evalCase, k int) scores {
	var s scores
	for _, c := range cases {
		results, err := r.Search(ctx, corpus, c.Query, k)
		if err != nil {
			slog.Warn("search failed", "strategy", r.Strategy(), "query", c.Query, "error", err)
			continue
		}
		ids := make([]string, len(results))
		for i, res := range results {
			ids[i] = res.Chunk.ID
		}

		s.precision += retriever.PrecisionAtK(ids, c.Relevant)
		s.recall += retriever.RecallAtK(ids, c.Relevant)
		best := 0.0
		for _, rel := range c.Relevant {
			if rr := retriever.ReciprocalRank(ids, rel); rr > best {
				best = rr
			}
		}
		s.mrr += best
		gains, ideal := retriever.BinaryGains(ids, c.Relevant)
		s.ndcg += retriever.NDCG(gains, ideal)
		s.n++
	}
	return s
}

func inspect(ctx context.Context, retrievers []port.Retriever, corpus *domain.Corpus, query string, k int) {
	fmt.Printf("Query: %q\n", query)
	for _, r := range retrievers {
		fmt.Println(strings.Repeat("-", 70))
		fmt.Printf("%s\n\n", strings.ToUpper(r.Strategy()))

		results, err := r.Search(ctx, corpus, query, k)
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			continue
		}
		for i, res := range results {
			preview := []rune(strings.ReplaceAll(res.Chunk.Text, "\n", " "))
			if len(preview) > 150 {
				preview = append(preview[:150], []rune("...")...)
			}
			fmt.Printf("%d. [%.3f] %s #%d\n   %s\n\n", i+1, res.Score, res.Chunk.Source, res.Chunk.Sequence, string(preview))
		}
	}
}
