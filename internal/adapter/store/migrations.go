package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"unirag/config"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
	keyEmbedModel    = []byte("embedding_model")
)

// SchemaInfo describes how a stored snapshot was produced.
type SchemaInfo struct {
	Version        int    `json:"version"`
	ConfigHash     string `json:"config_hash"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		info.ConfigHash = string(b.Get(keyConfigHash))
		info.EmbeddingModel = string(b.Get(keyEmbedModel))
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		if err := b.Put(keyEmbedModel, []byte(info.EmbeddingModel)); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// NewSchemaInfo stamps a snapshot built with cfg.
func NewSchemaInfo(cfg *config.Config) *SchemaInfo {
	info := &SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	}
	if cfg.Embedding.Enabled {
		info.EmbeddingModel = cfg.Embedding.Model
	}
	return info
}

// ComputeConfigHash computes a hash of ingestion-relevant configuration.
// A different hash means the snapshot was chunked or embedded differently.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		ChunkSize    int    `json:"chunk_size"`
		ChunkOverlap int    `json:"chunk_overlap"`
		EmbEnabled   bool   `json:"emb_enabled"`
		EmbProvider  string `json:"emb_provider"`
		EmbModel     string `json:"emb_model"`
		EmbDimension int    `json:"emb_dimension"`
	}{
		ChunkSize:    cfg.Corpus.ChunkSize,
		ChunkOverlap: cfg.Corpus.ChunkOverlap,
		EmbEnabled:   cfg.Embedding.Enabled,
		EmbProvider:  cfg.Embedding.Provider,
		EmbModel:     cfg.Embedding.Model,
		EmbDimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// checkSchema refuses snapshots written by a newer format.
func (s *BoltStore) checkSchema() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("snapshot created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	}
	return nil
}

// CheckCompatibility reports why a snapshot does not match cfg; empty means compatible.
func (s *BoltStore) CheckCompatibility(cfg *config.Config) (string, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return "", err
	}
	if info.ConfigHash == "" {
		return "", nil
	}
	if cfg.Retrieve.Strategy != "lexical" && info.EmbeddingModel != "" && info.EmbeddingModel != cfg.Embedding.Model {
		return fmt.Sprintf("snapshot embedded with %s, configured model is %s", info.EmbeddingModel, cfg.Embedding.Model), nil
	}
	if info.ConfigHash != ComputeConfigHash(cfg) {
		return "ingestion configuration changed since the snapshot was built", nil
	}
	return "", nil
}
