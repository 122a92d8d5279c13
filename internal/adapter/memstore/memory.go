package memstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"unirag/internal/adapter/store"
	"unirag/internal/domain"
	"unirag/internal/port"
)

var _ port.CorpusStore = (*CorpusStore)(nil)

// CorpusStore holds the active corpus. Readers take the current pointer
// without locking; Replace swaps the whole corpus at once.
type CorpusStore struct {
	current    atomic.Pointer[domain.Corpus]
	generation atomic.Uint64
	reloadMu   sync.Mutex
	path       string
	logger     *slog.Logger
}

// NewCorpusStore returns a store serving corpus (nil means empty).
func NewCorpusStore(corpus *domain.Corpus) *CorpusStore {
	s := &CorpusStore{logger: slog.Default()}
	s.Replace(corpus)
	return s
}

// Open loads the snapshot at path. A missing or unreadable snapshot is
// logged and the store starts with an empty corpus.
func Open(path string, logger *slog.Logger) *CorpusStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CorpusStore{path: path, logger: logger}

	corpus, err := store.LoadCorpus(path)
	if err != nil {
		logger.Warn("offline corpus unavailable, serving empty corpus",
			"path", path, "error", fmt.Errorf("%w: %v", domain.ErrCorpusUnavailable, err))
		corpus = &domain.Corpus{}
	} else {
		logger.Info("offline corpus loaded", "path", path, "chunks", corpus.Len(), "dimension", corpus.Dimension)
	}
	s.Replace(corpus)
	return s
}

func (s *CorpusStore) Corpus() *domain.Corpus {
	return s.current.Load()
}

func (s *CorpusStore) Generation() uint64 {
	return s.generation.Load()
}

// Replace installs corpus as the active snapshot.
func (s *CorpusStore) Replace(corpus *domain.Corpus) {
	if corpus == nil {
		corpus = &domain.Corpus{}
	}
	s.current.Store(corpus)
	s.generation.Add(1)
}

// Reload re-reads the snapshot from disk. On failure the previous corpus
// stays active.
func (s *CorpusStore) Reload() (*domain.Corpus, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.path == "" {
		return nil, errors.New("corpus store has no snapshot path")
	}

	corpus, err := store.LoadCorpus(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusUnavailable, err)
	}
	s.Replace(corpus)
	s.logger.Info("offline corpus reloaded", "path", s.path, "chunks", corpus.Len(), "generation", s.Generation())
	return corpus, nil
}

// Path returns the snapshot path backing the store.
func (s *CorpusStore) Path() string {
	return s.path
}
