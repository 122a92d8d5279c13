package port

import (
	"context"

	"unirag/internal/domain"
)

// LiveFetcher turns a list of URLs into sanitised text under a shared budget.
// Per-URL failures are absorbed; Fetch never fails the batch.
type LiveFetcher interface {
	Fetch(ctx context.Context, urls []string) []domain.LiveDocument
}
