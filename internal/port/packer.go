package port

import "unirag/internal/domain"

// Packer merges offline and live context into one bounded prompt body.
type Packer interface {
	Assemble(offline []domain.ScoredChunk, live []domain.LiveDocument, budget int) domain.AssembledContext
}
