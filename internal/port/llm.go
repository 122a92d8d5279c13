package port

import (
	"context"

	"unirag/internal/domain"
)

// LLM is the external text-completion service.
type LLM interface {
	// Complete issues exactly one completion request and returns the
	// generated text.
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
