package domain

import "time"

// Chunk is the unit of retrievable text.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Sequence int
	Vector   []float32
}

// Corpus is the immutable, ordered offline chunk collection.
type Corpus struct {
	Chunks    []Chunk
	Dimension int
	Sources   []string
}

// Len returns the number of chunks in the corpus. A nil corpus is empty.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// HasVectors reports whether the corpus is vector-capable.
func (c *Corpus) HasVectors() bool {
	return c != nil && c.Dimension > 0
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// LiveDocument is text extracted from one URL during a single request.
type LiveDocument struct {
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
	Truncated bool      `json:"truncated"`
}

// AssembledContext is the bounded prompt body handed to the LLM.
type AssembledContext struct {
	OfflineSection   string `json:"offline_section"`
	LiveSection      string `json:"live_section"`
	TotalCharBudget  int    `json:"total_char_budget"`
	OfflineTruncated bool   `json:"offline_truncated,omitempty"`
	LiveTruncated    bool   `json:"live_truncated,omitempty"`
}

// Snapshot is the persisted corpus record. ids, docs and vectors are
// index-aligned; sources and sequences are optional provenance columns.
type Snapshot struct {
	IDs       []string    `json:"ids"`
	Docs      []string    `json:"docs"`
	Vectors   [][]float32 `json:"vectors,omitempty"`
	Sources   []string    `json:"sources,omitempty"`
	Sequences []int       `json:"sequences,omitempty"`
}

// Message is one entry of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is sent to the external LLM service.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}
