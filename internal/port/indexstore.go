package port

import "unirag/internal/domain"

// CorpusStore owns the read-only offline corpus.
type CorpusStore interface {
	// Corpus returns the current snapshot. Callers must not mutate it.
	Corpus() *domain.Corpus

	// Generation increases every time the snapshot is replaced.
	Generation() uint64
}

// SnapshotStore persists and restores corpus snapshots.
type SnapshotStore interface {
	SaveSnapshot(snap domain.Snapshot) error

	LoadSnapshot() (domain.Snapshot, error)

	Close() error
}
