package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"unirag/internal/domain"
)

// DefaultSource is recorded for chunks whose snapshot carries no provenance.
const DefaultSource = "offline"

// ReadSnapshotFile decodes a JSON snapshot {"ids","docs","vectors"}.
func ReadSnapshotFile(path string) (domain.Snapshot, error) {
	var snap domain.Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("%w: %v", domain.ErrInvalidCorpus, err)
	}
	return snap, nil
}

// WriteSnapshotFile writes a JSON snapshot atomically via a temp file rename.
func WriteSnapshotFile(path string, snap domain.Snapshot) error {
	if _, err := BuildCorpus(snap); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// IsBoltPath reports whether path names a bolt snapshot rather than JSON.
func IsBoltPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".bolt":
		return true
	}
	return false
}

// LoadCorpus reads the snapshot at path and validates it into a corpus.
func LoadCorpus(path string) (*domain.Corpus, error) {
	var (
		snap domain.Snapshot
		err  error
	)

	if IsBoltPath(path) {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, statErr
		}
		var bs *BoltStore
		bs, err = OpenBoltStoreReadOnly(path)
		if err != nil {
			return nil, err
		}
		defer bs.Close()
		snap, err = bs.LoadSnapshot()
	} else {
		snap, err = ReadSnapshotFile(path)
	}
	if err != nil {
		return nil, err
	}

	return BuildCorpus(snap)
}

// SaveCorpus writes snap to path in the format implied by its extension.
func SaveCorpus(path string, snap domain.Snapshot, schema *SchemaInfo) error {
	if !IsBoltPath(path) {
		return WriteSnapshotFile(path, snap)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	bs, err := NewBoltStore(path)
	if err != nil {
		return err
	}
	defer bs.Close()

	if err := bs.SaveSnapshot(snap); err != nil {
		return err
	}
	if schema != nil {
		return bs.SetSchemaInfo(schema)
	}
	return nil
}

// BuildCorpus validates a snapshot and converts it to an ordered corpus.
// Columns must be index-aligned, texts non-empty, ids unique and vectors
// either absent or present for every chunk with one shared dimension.
func BuildCorpus(snap domain.Snapshot) (*domain.Corpus, error) {
	n := len(snap.IDs)
	if len(snap.Docs) != n {
		return nil, fmt.Errorf("%w: %d ids but %d docs", domain.ErrInvalidCorpus, n, len(snap.Docs))
	}
	if len(snap.Vectors) != 0 && len(snap.Vectors) != n {
		return nil, fmt.Errorf("%w: %d ids but %d vectors", domain.ErrInvalidCorpus, n, len(snap.Vectors))
	}
	if len(snap.Sources) != 0 && len(snap.Sources) != n {
		return nil, fmt.Errorf("%w: %d ids but %d sources", domain.ErrInvalidCorpus, n, len(snap.Sources))
	}
	if len(snap.Sequences) != 0 && len(snap.Sequences) != n {
		return nil, fmt.Errorf("%w: %d ids but %d sequences", domain.ErrInvalidCorpus, n, len(snap.Sequences))
	}

	corpus := &domain.Corpus{Chunks: make([]domain.Chunk, 0, n)}
	seen := make(map[string]struct{}, n)
	sources := make(map[string]struct{})

	for i, id := range snap.IDs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty id at position %d", domain.ErrInvalidCorpus, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidCorpus, id)
		}
		seen[id] = struct{}{}

		if snap.Docs[i] == "" {
			return nil, fmt.Errorf("%w: empty text for chunk %q", domain.ErrInvalidCorpus, id)
		}

		chunk := domain.Chunk{ID: id, Text: snap.Docs[i], Source: DefaultSource, Sequence: i}
		if len(snap.Sources) > 0 && snap.Sources[i] != "" {
			chunk.Source = snap.Sources[i]
		}
		if len(snap.Sequences) > 0 {
			chunk.Sequence = snap.Sequences[i]
		}

		if len(snap.Vectors) > 0 {
			vec := snap.Vectors[i]
			if len(vec) == 0 {
				return nil, fmt.Errorf("%w: missing vector for chunk %q", domain.ErrInvalidCorpus, id)
			}
			if corpus.Dimension == 0 {
				corpus.Dimension = len(vec)
			} else if len(vec) != corpus.Dimension {
				return nil, fmt.Errorf("%w: chunk %q has %d dimensions, want %d",
					domain.ErrDimensionMismatch, id, len(vec), corpus.Dimension)
			}
			chunk.Vector = vec
		}

		if _, ok := sources[chunk.Source]; !ok {
			sources[chunk.Source] = struct{}{}
			corpus.Sources = append(corpus.Sources, chunk.Source)
		}
		corpus.Chunks = append(corpus.Chunks, chunk)
	}

	return corpus, nil
}

// SnapshotOf flattens a corpus back into its persisted columns.
func SnapshotOf(chunks []domain.Chunk) domain.Snapshot {
	snap := domain.Snapshot{
		IDs:       make([]string, len(chunks)),
		Docs:      make([]string, len(chunks)),
		Sources:   make([]string, len(chunks)),
		Sequences: make([]int, len(chunks)),
	}
	withVectors := len(chunks) > 0 && len(chunks[0].Vector) > 0
	if withVectors {
		snap.Vectors = make([][]float32, len(chunks))
	}
	for i, c := range chunks {
		snap.IDs[i] = c.ID
		snap.Docs[i] = c.Text
		snap.Sources[i] = c.Source
		snap.Sequences[i] = c.Sequence
		if withVectors {
			snap.Vectors[i] = c.Vector
		}
	}
	return snap
}
