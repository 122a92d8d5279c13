package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"unirag/internal/domain"
	"unirag/internal/port"
)

// VectorRetriever ranks chunks by cosine similarity between the embedded
// query and the stored chunk vectors. Search is brute force over the
// in-memory corpus.
type VectorRetriever struct {
	embedder port.Embedder
}

func NewVectorRetriever(embedder port.Embedder) *VectorRetriever {
	return &VectorRetriever{embedder: embedder}
}

func (r *VectorRetriever) Strategy() string { return "vector" }

func (r *VectorRetriever) Search(ctx context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error) {
	if corpus.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if !corpus.HasVectors() {
		return nil, domain.ErrVectorsUnavailable
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", domain.ErrEmbedding)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrEmbedding)
	}

	return rankByVector(corpus, embeddings[0], k)
}

func rankByVector(corpus *domain.Corpus, query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(query) != corpus.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, corpus has %d", domain.ErrDimensionMismatch, len(query), corpus.Dimension)
	}

	results := make([]domain.ScoredChunk, len(corpus.Chunks))
	for i, chunk := range corpus.Chunks {
		results[i] = domain.ScoredChunk{
			Chunk: chunk,
			Score: CosineSimilarity(query, chunk.Vector),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Zero vectors and mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
