package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"unirag/config"
	"unirag/internal/adapter/analyzer"
	"unirag/internal/adapter/cache"
	"unirag/internal/adapter/embedding"
	"unirag/internal/adapter/fetcher"
	"unirag/internal/adapter/llm"
	"unirag/internal/adapter/memstore"
	"unirag/internal/adapter/retriever"
	"unirag/internal/adapter/store"
	"unirag/internal/port"
	"unirag/internal/usecase"
)

// pipeline is the fully wired answering stack for one process.
type pipeline struct {
	corpus    *memstore.CorpusStore
	retriever port.Retriever
	cache     *cache.CachedRetriever // nil when caching is disabled
	retrieve  *usecase.RetrieveUseCase
	fetcher   *fetcher.Fetcher
	assembler *usecase.Assembler
	answers   *usecase.AnswerService
}

// corpusPath resolves the snapshot path against the root directory.
func corpusPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Corpus.Path) {
		return cfg.Corpus.Path
	}
	return filepath.Join(GetRootDir(), cfg.Corpus.Path)
}

func newPipeline(cfg *config.Config, strategy string, log *slog.Logger) (*pipeline, error) {
	path := corpusPath(cfg)
	corpus := memstore.Open(path, log)
	warnIfStale(cfg, path, log)

	if strategy == "" {
		strategy = cfg.Retrieve.Strategy
	}
	r, err := newRetriever(cfg, strategy, corpus, log)
	if err != nil {
		return nil, err
	}

	p := &pipeline{corpus: corpus, retriever: r}
	if cfg.Retrieve.CacheSize > 0 {
		p.cache = cache.NewCachedRetriever(r, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))
		p.retriever = p.cache
	}

	p.retrieve = usecase.NewRetrieveUseCase(corpus, p.retriever, cfg.Retrieve.MinScore)
	p.fetcher = fetcher.New(fetcher.OptionsFromConfig(cfg.Live), &http.Client{}, log)
	p.assembler = usecase.NewAssembler(cfg.Pack.OfflineShare, cfg.Pack.MinSectionShare)

	completion, err := newLLM(cfg, log)
	if err != nil {
		log.Warn("LLM unavailable, answers will degrade to the apology", "error", err)
	}

	var answerLLM port.LLM
	if completion != nil {
		answerLLM = completion
	}
	p.answers = usecase.NewAnswerService(p.retrieve, p.fetcher, p.assembler, answerLLM, usecase.AnswerOptions{
		LiveURLs:     cfg.Live.URLs,
		TopK:         cfg.Retrieve.TopK,
		PackBudget:   cfg.Pack.CharBudget,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		LLMTimeout:   cfg.LLM.Timeout,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Apology:      cfg.LLM.Apology,
	}, log)

	return p, nil
}

// newRetriever builds the configured strategy. Vector strategies fall back
// to lexical when the embedder cannot be created, and per corpus when the
// loaded snapshot has no vectors or a different dimension.
func newRetriever(cfg *config.Config, strategy string, corpus *memstore.CorpusStore, log *slog.Logger) (port.Retriever, error) {
	opts := retriever.Options{
		Strategy:      strategy,
		MinTokenLen:   cfg.Retrieve.MinTokenLen,
		RRFK:          cfg.Retrieve.RRFK,
		LexicalWeight: cfg.Retrieve.LexicalWeight,
	}

	var embedder port.Embedder
	if strategy != "lexical" {
		embedCfg := cfg.Embedding
		embedCfg.Enabled = true
		e, err := embedding.New(embedCfg)
		if err != nil {
			log.Warn("embedder unavailable, falling back to lexical retrieval", "strategy", strategy, "error", err)
			opts.Strategy = "lexical"
		} else {
			embedder = e
			opts.Embedder = e
		}
	}

	r, err := retriever.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	if embedder == nil {
		return r, nil
	}

	lexical := retriever.NewLexicalRetriever(newTokenizer(cfg))
	return retriever.NewFallbackRetriever(r, lexical, embedder.Dimension(), corpus.Corpus(), log), nil
}

func newLLM(cfg *config.Config, log *slog.Logger) (*llm.OpenAILLM, error) {
	apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
	if apiKey == "" {
		log.Warn("LLM API key not set", "env", cfg.LLM.APIKeyEnv)
	}
	return llm.NewOpenAILLM(llm.Options{
		APIKey:  apiKey,
		BaseURL: cfg.LLM.APIURL,
		Model:   cfg.LLM.Model,
		Headers: cfg.LLM.Headers,
	})
}

// warnIfStale reports bolt snapshots built with different ingestion settings.
func warnIfStale(cfg *config.Config, path string, log *slog.Logger) {
	if !store.IsBoltPath(path) {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	bs, err := store.OpenBoltStoreReadOnly(path)
	if err != nil {
		return
	}
	defer bs.Close()

	reason, err := bs.CheckCompatibility(cfg)
	if err == nil && reason != "" {
		log.Warn("snapshot may be stale, re-run ingest", "reason", reason)
	}
}

func newTokenizer(cfg *config.Config) *analyzer.Tokenizer {
	return analyzer.NewTokenizer(cfg.Retrieve.MinTokenLen)
}
