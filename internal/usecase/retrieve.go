package usecase

import (
	"context"
	"fmt"
	"strings"

	"unirag/internal/domain"
	"unirag/internal/port"
)

// DefaultTopK is used when a request does not name k.
const DefaultTopK = 3

// RetrieveUseCase handles search against the active corpus snapshot.
type RetrieveUseCase struct {
	corpus            port.CorpusStore
	retriever         port.Retriever
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	corpus port.CorpusStore,
	retriever port.Retriever,
	minScoreThreshold float64,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		corpus:            corpus,
		retriever:         retriever,
		minScoreThreshold: minScoreThreshold,
	}
}

// Retrieve returns up to topK chunks for query from the current snapshot.
// The snapshot is read once so a concurrent reload cannot mix corpora.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrClientInput)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrClientInput)
	}

	corpus := u.corpus.Corpus()
	if corpus.Len() == 0 {
		return nil, nil
	}

	results, err := u.retriever.Search(ctx, corpus, query, topK)
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	return results, nil
}

// Strategy names the configured retrieval strategy.
func (u *RetrieveUseCase) Strategy() string {
	return u.retriever.Strategy()
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredChunk) []domain.ScoredChunk {
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ScoredChunkResult is a simplified result for CLI output.
type ScoredChunkResult struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Sequence int     `json:"sequence"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// ToResults flattens scored chunks for display.
func ToResults(chunks []domain.ScoredChunk) []ScoredChunkResult {
	out := make([]ScoredChunkResult, len(chunks))
	for i, sc := range chunks {
		out[i] = ScoredChunkResult{
			ID:       sc.Chunk.ID,
			Source:   sc.Chunk.Source,
			Sequence: sc.Chunk.Sequence,
			Score:    sc.Score,
			Text:     sc.Chunk.Text,
		}
	}
	return out
}
