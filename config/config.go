package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the assistant.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Live      LiveConfig      `yaml:"live"`
	Pack      PackConfig      `yaml:"pack"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig holds offline corpus and ingestion configuration.
type CorpusConfig struct {
	Path         string   `yaml:"path"` // .json snapshot or .db bolt snapshot
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	Strategy      string        `yaml:"strategy"` // "lexical", "vector", "hybrid"
	TopK          int           `yaml:"top_k"`
	MinTokenLen   int           `yaml:"min_token_len"`
	RRFK          int           `yaml:"rrf_k"`
	LexicalWeight float64       `yaml:"lexical_weight"`
	MinScore      float64       `yaml:"min_score"`  // 0 keeps every result
	CacheSize     int           `yaml:"cache_size"` // 0 disables the query cache
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// LiveConfig holds live web fetch configuration.
type LiveConfig struct {
	URLs          []string      `yaml:"urls"`
	PerURLTimeout time.Duration `yaml:"per_url_timeout"`
	CharBudget    int           `yaml:"char_budget"`
	Workers       int           `yaml:"workers"`
	PDFLinkCap    int           `yaml:"pdf_link_cap"` // 0 disables PDF enrichment
	PDFTimeout    time.Duration `yaml:"pdf_timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	UserAgent     string        `yaml:"user_agent"`
}

// PackConfig holds context assembly configuration.
type PackConfig struct {
	CharBudget      int     `yaml:"char_budget"`
	OfflineShare    float64 `yaml:"offline_share"`
	MinSectionShare float64 `yaml:"min_section_share"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "openai", "deepseek", "jina", "ollama", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig holds the completion service configuration.
type LLMConfig struct {
	APIURL       string            `yaml:"api_url"`
	APIKeyEnv    string            `yaml:"api_key_env"`
	Model        string            `yaml:"model"`
	Temperature  float64           `yaml:"temperature"`
	MaxTokens    int               `yaml:"max_tokens"`
	Timeout      time.Duration     `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	SystemPrompt string            `yaml:"system_prompt"` // empty uses the built-in prompt
	Apology      string            `yaml:"apology"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
	RateLimit    float64  `yaml:"rate_limit"` // requests per second per client, 0 = unlimited
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Path:         filepath.Join("data", "embeddings.json"),
			ChunkSize:    900,
			ChunkOverlap: 150,
			Includes:     []string{"**/*.txt", "**/*.md", "**/*.pdf"},
			Excludes:     []string{"**/.git/**", "**/node_modules/**"},
		},
		Retrieve: RetrieveConfig{
			Strategy:      "lexical",
			TopK:          3,
			MinTokenLen:   4,
			RRFK:          60,
			LexicalWeight: 0.5,
			CacheSize:     0,
			CacheTTL:      5 * time.Minute,
		},
		Live: LiveConfig{
			URLs:          DefaultLiveURLs(),
			PerURLTimeout: 8 * time.Second,
			CharBudget:    8000,
			Workers:       4,
			PDFLinkCap:    5,
			PDFTimeout:    10 * time.Second,
			MaxBodyBytes:  2 << 20,
			UserAgent:     "unirag/1.0",
		},
		Pack: PackConfig{
			CharBudget:      12000,
			OfflineShare:    0.5,
			MinSectionShare: 0.25,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 16,
		},
		LLM: LLMConfig{
			APIKeyEnv:   "LLM_API_KEY",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.2,
			MaxTokens:   500,
			Timeout:     30 * time.Second,
			Headers:     map[string]string{"Groq-Version": "2024-10-14"},
			Apology:     "Sorry, I could not find an answer right now. Please try again later.",
		},
		Server: ServerConfig{
			Addr:         ":5000",
			AllowOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultLiveURLs returns the versioned list of university pages scraped per request.
func DefaultLiveURLs() []string {
	return []string{
		"https://mzu.edu.in",
		"https://mzu.edu.in/refund-policy/",
		"https://mzu.edu.in/admission-brochures/",
		"https://mzu.edu.in/contact-us/",
		"https://mzu.edu.in/schools-departments/",
		"https://mzu.edu.in/department-of-information-technology/",
		"https://mzu.edu.in/department-of-computer-engineering/",
		"https://mzu.edu.in/department-of-electronics-communication-engineering/",
		"https://mzu.edu.in/department-of-civil-engineering-department/",
		"https://mzu.edu.in/department-of-electrical-engineering/",
		"https://mzu.edu.in/dean-students-welfare/",
		"https://mzu.edu.in/examination-news-results/",
		"https://mzu.edu.in/sports/",
		"https://stjmzu.org/index.php/journal",
		"https://mzu.edu.in/message-by-vice-chancellor/",
		"https://mzu.edu.in/visitor/",
		"https://mzu.edu.in/registrar/",
		"https://lib.mzu.edu.in/",
		"https://mzu.edu.in/certifications-accreditations/",
		"https://mzu.edu.in/affiliated-institutes/",
		"https://sites.google.com/mzu.edu.in/gallery?usp=sharing",
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for unirag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "unirag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".unirag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployment environments override the YAML values.
func (c *Config) applyEnv() {
	if v := os.Getenv("LLM_API_URL"); v != "" {
		c.LLM.APIURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("UNIRAG_CORPUS"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv("UNIRAG_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Corpus.ChunkSize <= 0 {
		return fmt.Errorf("corpus.chunk_size must be positive, got %d", c.Corpus.ChunkSize)
	}
	if c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		return fmt.Errorf("corpus.chunk_overlap must be in [0, chunk_size), got %d", c.Corpus.ChunkOverlap)
	}
	switch c.Retrieve.Strategy {
	case "lexical", "vector", "hybrid":
	default:
		return fmt.Errorf("unknown retrieve.strategy %q", c.Retrieve.Strategy)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Live.CharBudget < 0 || c.Pack.CharBudget <= 0 {
		return fmt.Errorf("character budgets must be positive")
	}
	if c.Pack.OfflineShare < 0 || c.Pack.OfflineShare > 1 {
		return fmt.Errorf("pack.offline_share must be in [0, 1], got %v", c.Pack.OfflineShare)
	}
	if c.Pack.MinSectionShare < 0 || c.Pack.MinSectionShare > 0.5 {
		return fmt.Errorf("pack.min_section_share must be in [0, 0.5], got %v", c.Pack.MinSectionShare)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
