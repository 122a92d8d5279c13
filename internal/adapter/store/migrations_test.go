package store

import (
	"path/filepath"
	"testing"

	"unirag/config"
)

func TestSchemaInfo(t *testing.T) {
	bs, err := NewBoltStore(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer bs.Close()

	info, err := bs.GetSchemaInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 0 || info.ConfigHash != "" {
		t.Errorf("expected empty schema info, got %+v", info)
	}

	cfg := config.DefaultConfig()
	if err := bs.SetSchemaInfo(NewSchemaInfo(cfg)); err != nil {
		t.Fatal(err)
	}

	info, err = bs.GetSchemaInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != CurrentSchemaVersion {
		t.Errorf("expected version %d, got %d", CurrentSchemaVersion, info.Version)
	}

	reason, err := bs.CheckCompatibility(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if reason != "" {
		t.Errorf("expected compatible snapshot, got %q", reason)
	}

	changed := config.DefaultConfig()
	changed.Corpus.ChunkSize = 500
	reason, _ = bs.CheckCompatibility(changed)
	if reason == "" {
		t.Error("expected chunk size change to be reported")
	}
}

func TestSchemaInfo_NewerVersionRejected(t *testing.T) {
	bs, err := NewBoltStore(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer bs.Close()

	if err := bs.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := bs.LoadSnapshot(); err == nil {
		t.Error("expected error loading snapshot from newer schema")
	}
}

func TestComputeConfigHash(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("expected identical configs to hash equally")
	}

	b.Retrieve.TopK = 10
	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("retrieval settings should not affect the ingestion hash")
	}

	b.Embedding.Model = "other"
	if ComputeConfigHash(a) == ComputeConfigHash(b) {
		t.Error("expected embedding model to change the hash")
	}
}
