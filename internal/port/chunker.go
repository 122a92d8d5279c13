package port

import "unirag/internal/domain"

// Chunker splits one source document into corpus chunks.
type Chunker interface {
	Chunk(source, content string) ([]domain.Chunk, error)
}
