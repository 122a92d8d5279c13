package port

import (
	"context"

	"unirag/internal/domain"
)

// Retriever ranks the chunks of a corpus against a query.
type Retriever interface {
	// Search returns at most k chunks ordered by descending relevance.
	// An empty corpus yields an empty result, never an error.
	Search(ctx context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error)

	// Strategy names the scoring strategy ("lexical", "vector", "hybrid").
	Strategy() string
}
