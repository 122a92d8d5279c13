package retriever

import (
	"context"
	"sort"

	"unirag/internal/domain"
)

// HybridRetriever combines lexical term scoring with vector similarity.
// Only valid on a vector-capable corpus.
type HybridRetriever struct {
	lexical       *LexicalRetriever
	vector        *VectorRetriever
	rrfK          int     // RRF constant (typically 60)
	lexicalWeight float64 // Weight for lexical results (0-1)
}

// NewHybridRetriever creates a new hybrid retriever.
func NewHybridRetriever(lexical *LexicalRetriever, vector *VectorRetriever, rrfK int, lexicalWeight float64) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = 60 // Standard default
	}
	if lexicalWeight < 0 || lexicalWeight > 1 {
		lexicalWeight = 0.5 // Equal weighting
	}

	return &HybridRetriever{
		lexical:       lexical,
		vector:        vector,
		rrfK:          rrfK,
		lexicalWeight: lexicalWeight,
	}
}

func (r *HybridRetriever) Strategy() string { return "hybrid" }

// Search fuses the full lexical and vector rankings with Reciprocal Rank
// Fusion. Scores are RRF sums, not comparable with either input strategy.
func (r *HybridRetriever) Search(ctx context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error) {
	if corpus.Len() == 0 || k <= 0 {
		return nil, nil
	}

	vectorResults, err := r.vector.Search(ctx, corpus, query, corpus.Len())
	if err != nil {
		return nil, err
	}
	lexicalResults := r.lexical.rank(corpus, r.lexical.tokenizer.Tokenize(query))

	fused := r.rrfFuse(corpus, lexicalResults, vectorResults)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// rrfFuse combines results using Reciprocal Rank Fusion.
// RRF score = Σ weight/(k + rank) for each result list where the chunk appears.
func (r *HybridRetriever) rrfFuse(corpus *domain.Corpus, lexicalResults, vectorResults []domain.ScoredChunk) []domain.ScoredChunk {
	position := make(map[string]int, len(corpus.Chunks))
	for i, c := range corpus.Chunks {
		position[c.ID] = i
	}

	rrfScores := make(map[string]float64)

	for rank, result := range lexicalResults {
		rrfScores[result.Chunk.ID] += r.lexicalWeight / float64(r.rrfK+rank+1)
	}

	vectorWeight := 1.0 - r.lexicalWeight
	for rank, result := range vectorResults {
		rrfScores[result.Chunk.ID] += vectorWeight / float64(r.rrfK+rank+1)
	}

	fused := make([]domain.ScoredChunk, 0, len(rrfScores))
	for id, score := range rrfScores {
		fused = append(fused, domain.ScoredChunk{
			Chunk: corpus.Chunks[position[id]],
			Score: score,
		})
	}

	// Ties fall back to corpus order so results are deterministic.
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return position[fused[i].Chunk.ID] < position[fused[j].Chunk.ID]
	})

	return fused
}
