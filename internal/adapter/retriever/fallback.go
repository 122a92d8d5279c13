package retriever

import (
	"context"
	"log/slog"
	"sync/atomic"

	"unirag/internal/domain"
	"unirag/internal/port"
)

// FallbackRetriever serves a vector-based strategy when the corpus supports
// it and lexical retrieval otherwise. Support is checked against each corpus
// searched, so a reload that adds or drops vectors switches strategy
// without a restart.
type FallbackRetriever struct {
	preferred port.Retriever
	lexical   port.Retriever
	dimension int // embedder dimension, 0 when unknown
	logger    *slog.Logger

	last   atomic.Pointer[domain.Corpus]
	active atomic.Value // string
}

func NewFallbackRetriever(preferred, lexical port.Retriever, dimension int, initial *domain.Corpus, logger *slog.Logger) *FallbackRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FallbackRetriever{
		preferred: preferred,
		lexical:   lexical,
		dimension: dimension,
		logger:    logger,
	}
	r.pick(initial)
	return r
}

// Supports reports whether corpus can serve the preferred strategy.
func (r *FallbackRetriever) Supports(corpus *domain.Corpus) bool {
	if !corpus.HasVectors() {
		return false
	}
	return r.dimension <= 0 || r.dimension == corpus.Dimension
}

// Strategy names the strategy used for the most recently seen corpus.
func (r *FallbackRetriever) Strategy() string {
	s, _ := r.active.Load().(string)
	return s
}

func (r *FallbackRetriever) Search(ctx context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error) {
	return r.pick(corpus).Search(ctx, corpus, query, k)
}

func (r *FallbackRetriever) pick(corpus *domain.Corpus) port.Retriever {
	chosen := r.lexical
	if r.Supports(corpus) {
		chosen = r.preferred
	}

	if r.last.Swap(corpus) != corpus {
		r.active.Store(chosen.Strategy())
		if chosen == r.lexical {
			dim := 0
			if corpus != nil {
				dim = corpus.Dimension
			}
			r.logger.Warn("corpus cannot serve vector retrieval, using lexical",
				"strategy", r.preferred.Strategy(), "chunks", corpus.Len(),
				"corpus_dimension", dim, "embedder_dimension", r.dimension)
		} else {
			r.logger.Info("vector retrieval active", "strategy", chosen.Strategy(), "chunks", corpus.Len())
		}
	}
	return chosen
}
