package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"unirag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering API",
	Long: `Start the HTTP API:

  POST /chat     {"query": "...", "k": 3} -> {"answer": "..."}
  GET  /health   corpus size and retrieval strategy
  POST /reload   re-read the corpus snapshot from disk
  POST /builddb  disabled; build snapshots with 'unirag ingest'

Examples:
  unirag serve
  unirag serve --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	p, err := newPipeline(cfg, "", logger)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Answers:  p.answers,
		Corpus:   p.corpus,
		Reloader: p.corpus,
		Strategy: p.retriever.Strategy(),
		Apology:  cfg.LLM.Apology,
	}
	if p.cache != nil {
		deps.Cache = p.cache
	}
	srv := server.New(cfg.Server, deps, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
