package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"unirag/internal/adapter/fetcher"
	"unirag/internal/adapter/fs"
	"unirag/internal/adapter/store"
	"unirag/internal/domain"
	"unirag/internal/port"
)

// IngestOptions tunes offline ingestion.
type IngestOptions struct {
	BatchSize int
	Schema    *store.SchemaInfo

	// Progress is called after every embedding batch with chunks done and total.
	Progress func(done, total int)
}

// IngestUseCase turns a directory of documents into a corpus snapshot.
type IngestUseCase struct {
	walker   port.FileWalker
	chunker  port.Chunker
	embedder port.Embedder // nil builds a lexical-only snapshot
	opts     IngestOptions
	logger   *slog.Logger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	walker port.FileWalker,
	chunker port.Chunker,
	embedder port.Embedder,
	opts IngestOptions,
	logger *slog.Logger,
) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		walker:   walker,
		chunker:  chunker,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// IngestResult contains the results of an ingestion run.
type IngestResult struct {
	FilesIndexed  int
	FilesSkipped  int
	ChunksCreated int
	Dimension     int
	Errors        []string
}

// Build walks root, chunks every readable document and embeds the chunks
// when an embedder is configured. Unreadable files are reported, not fatal.
func (u *IngestUseCase) Build(ctx context.Context, root string) (domain.Snapshot, *IngestResult, error) {
	result := &IngestResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return domain.Snapshot{}, nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	var chunks []domain.Chunk
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return domain.Snapshot{}, nil, err
		}

		content, err := readDocument(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", file.RelPath, err))
			continue
		}
		if strings.TrimSpace(content) == "" {
			result.FilesSkipped++
			continue
		}

		fileChunks, err := u.chunker.Chunk(file.RelPath, content)
		if err != nil {
			return domain.Snapshot{}, nil, fmt.Errorf("failed to chunk %s: %w", file.RelPath, err)
		}
		for _, c := range fileChunks {
			if strings.TrimSpace(c.Text) != "" {
				chunks = append(chunks, c)
			}
		}
		result.FilesIndexed++
		u.logger.Debug("document chunked", "source", file.RelPath, "chunks", len(fileChunks))
	}

	if u.embedder != nil && len(chunks) > 0 {
		if err := u.embed(ctx, chunks); err != nil {
			return domain.Snapshot{}, nil, err
		}
		result.Dimension = len(chunks[0].Vector)
	}

	result.ChunksCreated = len(chunks)
	return store.SnapshotOf(chunks), result, nil
}

// Ingest builds a snapshot from root and writes it to out.
func (u *IngestUseCase) Ingest(ctx context.Context, root, out string) (*IngestResult, error) {
	snap, result, err := u.Build(ctx, root)
	if err != nil {
		return nil, err
	}

	if err := store.SaveCorpus(out, snap, u.opts.Schema); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	u.logger.Info("snapshot written",
		"path", out,
		"files", result.FilesIndexed,
		"chunks", result.ChunksCreated,
		"dimension", result.Dimension,
	)
	return result, nil
}

func (u *IngestUseCase) embed(ctx context.Context, chunks []domain.Chunk) error {
	total := len(chunks)
	for start := 0; start < total; start += u.opts.BatchSize {
		end := start + u.opts.BatchSize
		if end > total {
			end = total
		}

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Vector = v
		}

		if u.opts.Progress != nil {
			u.opts.Progress(end, total)
		}
	}
	return nil
}

// readDocument returns the text of a plain-text or PDF document.
func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		data, err := fs.ReadFile(path)
		if err != nil {
			return "", err
		}
		return fetcher.ExtractPDFText([]byte(data))
	}
	return fs.ReadFile(path)
}
