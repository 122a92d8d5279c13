package embedding

import (
	"fmt"
	"os"

	"unirag/config"
	"unirag/internal/port"
)

// providerBaseURLs are OpenAI-compatible endpoints selectable by name.
var providerBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"jina":     "https://api.jina.ai/v1",
	"ollama":   "http://localhost:11434/v1",
}

// New builds the embedder described by cfg, or nil when embeddings are disabled.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.Provider == "mock" {
		return NewMockEmbedder(cfg.Dimension), nil
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	baseURL, ok := providerBaseURLs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if provider == "ollama" && apiKey == "" {
		apiKey = "ollama"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}

	return NewOpenAIEmbedder(Options{
		APIKey:    apiKey,
		Model:     cfg.Model,
		BaseURL:   baseURL,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
	})
}
