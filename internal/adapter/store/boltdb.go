package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"unirag/internal/domain"
	"unirag/internal/port"
)

var (
	bucketChunks  = []byte("chunks")
	bucketBlobs   = []byte("blobs")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
)

var _ port.SnapshotStore = (*BoltStore)(nil)

// BoltStore persists one corpus snapshot in a bbolt file. Chunks are keyed
// by their corpus position so a cursor walk restores corpus order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketBlobs, bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// OpenBoltStoreReadOnly opens an existing snapshot without creating buckets.
func OpenBoltStoreReadOnly(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0400, &bbolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type chunkMeta struct {
	ID       string `json:"id"`
	Source   string `json:"source,omitempty"`
	Sequence int    `json:"seq"`
}

func positionKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

// SaveSnapshot replaces the stored corpus in a single transaction.
func (s *BoltStore) SaveSnapshot(snap domain.Snapshot) error {
	if _, err := BuildCorpus(snap); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketBlobs, bucketVectors} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		chunks := tx.Bucket(bucketChunks)
		blobs := tx.Bucket(bucketBlobs)
		vectors := tx.Bucket(bucketVectors)

		for i, id := range snap.IDs {
			meta := chunkMeta{ID: id, Sequence: i}
			if i < len(snap.Sources) {
				meta.Source = snap.Sources[i]
			}
			if i < len(snap.Sequences) {
				meta.Sequence = snap.Sequences[i]
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}

			key := positionKey(i)
			if err := chunks.Put(key, data); err != nil {
				return err
			}
			if err := blobs.Put(key, []byte(snap.Docs[i])); err != nil {
				return err
			}

			if len(snap.Vectors) > 0 {
				vec, err := json.Marshal(snap.Vectors[i])
				if err != nil {
					return err
				}
				if err := vectors.Put(key, vec); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// LoadSnapshot reads the stored corpus back in position order.
func (s *BoltStore) LoadSnapshot() (domain.Snapshot, error) {
	var snap domain.Snapshot

	if err := s.checkSchema(); err != nil {
		return snap, err
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		if chunks == nil {
			return nil
		}
		blobs := tx.Bucket(bucketBlobs)
		vectors := tx.Bucket(bucketVectors)

		hasSources := false
		c := chunks.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var meta chunkMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt chunk record at %x: %w", k, err)
			}
			snap.IDs = append(snap.IDs, meta.ID)
			snap.Docs = append(snap.Docs, string(blobs.Get(k)))
			snap.Sources = append(snap.Sources, meta.Source)
			snap.Sequences = append(snap.Sequences, meta.Sequence)
			if meta.Source != "" {
				hasSources = true
			}

			if vectors != nil {
				if data := vectors.Get(k); data != nil {
					var vec []float32
					if err := json.Unmarshal(data, &vec); err != nil {
						return fmt.Errorf("corrupt vector at %x: %w", k, err)
					}
					snap.Vectors = append(snap.Vectors, vec)
				}
			}
		}

		if !hasSources {
			snap.Sources = nil
		}
		return nil
	})

	return snap, err
}

// Count returns the number of stored chunks.
func (s *BoltStore) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
