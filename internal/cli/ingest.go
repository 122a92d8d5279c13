package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"unirag/internal/adapter/chunker"
	"unirag/internal/adapter/embedding"
	"unirag/internal/adapter/fs"
	"unirag/internal/adapter/store"
	"unirag/internal/usecase"
)

var (
	ingestOutput string
	ingestEmbed  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Build the offline corpus snapshot",
	Long: `Chunk every text, markdown and PDF document under path and write a corpus
snapshot. A .json output writes {"ids","docs","vectors"}; a .db output writes a
bolt snapshot that also records the ingestion settings.

Examples:
  unirag ingest ./mzu_docs
  unirag ingest ./mzu_docs -o data/corpus.db --embed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "", "snapshot path (default from config)")
	ingestCmd.Flags().BoolVar(&ingestEmbed, "embed", false, "embed chunks even if embeddings are disabled in config")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	if ingestEmbed {
		cfg.Embedding.Enabled = true
	}

	out := corpusPath(cfg)
	if ingestOutput != "" {
		out = ingestOutput
	}

	chk, err := chunker.NewWindowChunker(cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)
	if err != nil {
		return err
	}
	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	ingestUC := usecase.NewIngestUseCase(walker, chk, embedder, usecase.IngestOptions{
		BatchSize: cfg.Embedding.BatchSize,
		Schema:    store.NewSchemaInfo(cfg),
		Progress:  progress,
	}, logger)

	fmt.Printf("Scanning %s...\n", path)
	result, err := ingestUC.Ingest(cmd.Context(), path, out)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (empty)\n", result.FilesSkipped)
	fmt.Printf("  Chunks created: %d\n", result.ChunksCreated)
	if result.Dimension > 0 {
		fmt.Printf("  Vector dim:     %d\n", result.Dimension)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nSnapshot stored at: %s\n", out)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
