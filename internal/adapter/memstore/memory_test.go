package memstore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"unirag/internal/adapter/store"
	"unirag/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSnapshot(t *testing.T, path string, docs ...string) {
	t.Helper()
	snap := domain.Snapshot{Docs: docs}
	for i := range docs {
		snap.IDs = append(snap.IDs, string(rune('a'+i)))
	}
	require.NoError(t, store.SaveCorpus(path, snap, nil))
}

func TestOpen_MissingSnapshotServesEmptyCorpus(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing.json"), quietLogger())

	require.NotNil(t, s.Corpus())
	assert.Equal(t, 0, s.Corpus().Len())
	assert.Equal(t, uint64(1), s.Generation())
}

func TestOpen_LoadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.json")
	writeSnapshot(t, path, "first chunk", "second chunk")

	s := Open(path, quietLogger())
	assert.Equal(t, 2, s.Corpus().Len())
	assert.Equal(t, path, s.Path())
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.json")
	writeSnapshot(t, path, "first chunk")

	s := Open(path, quietLogger())
	before := s.Corpus()
	gen := s.Generation()

	writeSnapshot(t, path, "first chunk", "second chunk", "third chunk")
	corpus, err := s.Reload()
	require.NoError(t, err)

	assert.Equal(t, 3, corpus.Len())
	assert.Same(t, corpus, s.Corpus())
	assert.Equal(t, gen+1, s.Generation())
	assert.Equal(t, 1, before.Len(), "old snapshot must stay intact for in-flight readers")
}

func TestReload_FailureKeepsCurrentCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.json")
	writeSnapshot(t, path, "first chunk")
	s := Open(path, quietLogger())
	current := s.Corpus()

	require.NoError(t, os.WriteFile(path, []byte(`{"ids":["a"],"docs":[]}`), 0644))
	_, err := s.Reload()
	assert.ErrorIs(t, err, domain.ErrCorpusUnavailable)
	assert.Same(t, current, s.Corpus())
}

func TestReload_NoPath(t *testing.T) {
	s := NewCorpusStore(nil)
	_, err := s.Reload()
	assert.Error(t, err)
}

func TestConcurrentReadsDuringReplace(t *testing.T) {
	s := NewCorpusStore(&domain.Corpus{Chunks: []domain.Chunk{{ID: "a", Text: "x"}}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c := s.Corpus()
				if c == nil || c.Len() == 0 {
					t.Error("reader observed an empty corpus")
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		s.Replace(&domain.Corpus{Chunks: []domain.Chunk{{ID: "b", Text: "y"}}})
	}
	wg.Wait()
}
