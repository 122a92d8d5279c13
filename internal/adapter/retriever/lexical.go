package retriever

import (
	"context"
	"sort"

	"unirag/internal/domain"
	"unirag/internal/port"
)

// LexicalRetriever scores chunks by raw substring occurrence counts of the
// query terms.
type LexicalRetriever struct {
	tokenizer port.Tokenizer
}

func NewLexicalRetriever(tokenizer port.Tokenizer) *LexicalRetriever {
	return &LexicalRetriever{tokenizer: tokenizer}
}

func (r *LexicalRetriever) Strategy() string { return "lexical" }

// Search ranks chunks by summed term counts, ties kept in corpus order.
// Zero-score chunks never enter the ranking. When fewer than k chunks score,
// the remaining slots are filled with unranked chunks in corpus order, so a
// non-empty corpus always yields min(k, len) chunks.
func (r *LexicalRetriever) Search(_ context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error) {
	if corpus.Len() == 0 || k <= 0 {
		return nil, nil
	}

	results := r.rank(corpus, r.tokenizer.Tokenize(query))
	if len(results) >= k {
		return results[:k], nil
	}
	return fillUnranked(corpus, results, k), nil
}

func (r *LexicalRetriever) rank(corpus *domain.Corpus, terms []string) []domain.ScoredChunk {
	if len(terms) == 0 {
		return nil
	}

	results := make([]domain.ScoredChunk, 0, len(corpus.Chunks))
	for _, chunk := range corpus.Chunks {
		score := 0
		for _, term := range terms {
			score += r.tokenizer.CountOccurrences(chunk.Text, term)
		}
		if score == 0 {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk: chunk,
			Score: float64(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// fillUnranked appends zero-score chunks in corpus order until k results
// (or the whole corpus) are present.
func fillUnranked(corpus *domain.Corpus, ranked []domain.ScoredChunk, k int) []domain.ScoredChunk {
	if k > len(corpus.Chunks) {
		k = len(corpus.Chunks)
	}

	taken := make(map[string]struct{}, len(ranked))
	for _, r := range ranked {
		taken[r.Chunk.ID] = struct{}{}
	}

	results := make([]domain.ScoredChunk, 0, k)
	results = append(results, ranked...)
	for _, chunk := range corpus.Chunks {
		if len(results) >= k {
			break
		}
		if _, ok := taken[chunk.ID]; ok {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk})
	}
	return results
}
