package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"unirag/internal/domain"
)

type countingRetriever struct {
	calls int
	err   error
}

func (r *countingRetriever) Strategy() string { return "counting" }

func (r *countingRetriever) Search(_ context.Context, corpus *domain.Corpus, query string, k int) ([]domain.ScoredChunk, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []domain.ScoredChunk{{Chunk: corpus.Chunks[0], Score: 1}}, nil
}

func corpus() *domain.Corpus {
	return &domain.Corpus{Chunks: []domain.Chunk{{ID: "c1", Text: "library"}}}
}

func TestCachedRetrieverHit(t *testing.T) {
	inner := &countingRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))
	c := corpus()

	for i := 0; i < 3; i++ {
		if _, err := r.Search(context.Background(), c, "library hours", 3); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", inner.calls)
	}
	if r.Strategy() != "counting" {
		t.Errorf("expected strategy passthrough, got %s", r.Strategy())
	}
}

func TestCachedRetrieverNewSnapshotMisses(t *testing.T) {
	inner := &countingRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))

	r.Search(context.Background(), corpus(), "library", 3)
	r.Search(context.Background(), corpus(), "library", 3)

	if inner.calls != 2 {
		t.Errorf("expected a miss for a replaced corpus, got %d calls", inner.calls)
	}
}

func TestCachedRetrieverInvalidate(t *testing.T) {
	inner := &countingRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))
	c := corpus()

	r.Search(context.Background(), c, "library", 3)
	r.Invalidate()
	r.Search(context.Background(), c, "library", 3)

	if inner.calls != 2 {
		t.Errorf("expected a miss after invalidate, got %d calls", inner.calls)
	}
}

func TestCachedRetrieverErrorsNotCached(t *testing.T) {
	inner := &countingRetriever{err: errors.New("boom")}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))
	c := corpus()

	r.Search(context.Background(), c, "library", 3)
	r.Search(context.Background(), c, "library", 3)

	if inner.calls != 2 {
		t.Errorf("errors must not be cached, got %d calls", inner.calls)
	}
}

func TestQueryCacheEviction(t *testing.T) {
	qc := NewQueryCache(2, time.Minute)
	c := corpus()

	qc.Put(c, "a", 1, nil)
	qc.Put(c, "b", 1, nil)
	qc.Get(c, "a", 1) // a becomes most recent
	qc.Put(c, "c", 1, nil)

	if qc.Size() != 2 {
		t.Fatalf("expected size 2, got %d", qc.Size())
	}
	if _, ok := qc.Get(c, "b", 1); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := qc.Get(c, "a", 1); !ok {
		t.Error("expected a to survive")
	}
}

func TestQueryCacheTTL(t *testing.T) {
	qc := NewQueryCache(2, time.Nanosecond)
	c := corpus()

	qc.Put(c, "a", 1, nil)
	time.Sleep(time.Millisecond)
	if _, ok := qc.Get(c, "a", 1); ok {
		t.Error("expected expired entry to miss")
	}
}
