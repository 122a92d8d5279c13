package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"unirag/config"
	"unirag/internal/adapter/memstore"
	"unirag/internal/adapter/store"
	"unirag/internal/domain"
	"unirag/internal/usecase"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockEmbeddingConfig(dim int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = dim
	return cfg
}

func TestNewRetriever_FallsBackWithoutVectors(t *testing.T) {
	cfg := mockEmbeddingConfig(4)
	corpus := memstore.NewCorpusStore(&domain.Corpus{Chunks: []domain.Chunk{{ID: "a", Text: "x"}}})

	r, err := newRetriever(cfg, "vector", corpus, quiet())
	require.NoError(t, err)
	assert.Equal(t, "lexical", r.Strategy())
}

func TestNewRetriever_FallsBackOnDimensionMismatch(t *testing.T) {
	cfg := mockEmbeddingConfig(8)
	corpus := memstore.NewCorpusStore(&domain.Corpus{
		Chunks:    []domain.Chunk{{ID: "a", Text: "x", Vector: []float32{1, 0, 0, 0}}},
		Dimension: 4,
	})

	r, err := newRetriever(cfg, "hybrid", corpus, quiet())
	require.NoError(t, err)
	assert.Equal(t, "lexical", r.Strategy())
}

func TestNewRetriever_VectorCapableCorpus(t *testing.T) {
	cfg := mockEmbeddingConfig(4)
	corpus := memstore.NewCorpusStore(&domain.Corpus{
		Chunks:    []domain.Chunk{{ID: "a", Text: "x", Vector: []float32{1, 0, 0, 0}}},
		Dimension: 4,
	})

	for _, strategy := range []string{"vector", "hybrid"} {
		r, err := newRetriever(cfg, strategy, corpus, quiet())
		require.NoError(t, err)
		assert.Equal(t, strategy, r.Strategy())
	}
}

func TestNewRetriever_FollowsReloadedCorpus(t *testing.T) {
	cfg := mockEmbeddingConfig(4)
	corpus := memstore.NewCorpusStore(&domain.Corpus{Chunks: []domain.Chunk{{ID: "a", Text: "library hours"}}})

	r, err := newRetriever(cfg, "vector", corpus, quiet())
	require.NoError(t, err)
	assert.Equal(t, "lexical", r.Strategy())

	corpus.Replace(&domain.Corpus{
		Chunks:    []domain.Chunk{{ID: "b", Text: "library hours", Vector: []float32{1, 0, 0, 0}}},
		Dimension: 4,
	})
	results, err := r.Search(context.Background(), corpus.Corpus(), "library", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vector", r.Strategy())

	corpus.Replace(&domain.Corpus{Chunks: []domain.Chunk{{ID: "c", Text: "hostel fees"}}})
	results, err = r.Search(context.Background(), corpus.Corpus(), "hostel", 1)
	require.NoError(t, err, "a reload without vectors must not break retrieval")
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Chunk.ID)
	assert.Equal(t, "lexical", r.Strategy())
}

func TestNewPipeline_EmptyCorpusStillAnswers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "missing.json")
	cfg.Live.URLs = []string{"http://127.0.0.1:1/"}
	cfg.Live.PerURLTimeout = 200 * time.Millisecond
	cfg.LLM.APIKeyEnv = "UNIRAG_TEST_NO_KEY"
	cfg.LLM.APIURL = "http://127.0.0.1:1/v1"
	cfg.LLM.Timeout = time.Second
	cfg.Retrieve.CacheSize = 8

	p, err := newPipeline(cfg, "", quiet())
	require.NoError(t, err)
	require.NotNil(t, p.cache)

	ans, err := p.answers.Answer(context.Background(), usecase.AnswerRequest{Query: "Who is the registrar?"})
	require.NoError(t, err)
	assert.Equal(t, cfg.LLM.Apology, ans.Text)
}

func TestNewPipeline_LoadsBoltSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	cfg := config.DefaultConfig()
	cfg.Corpus.Path = path
	require.NoError(t, store.SaveCorpus(path, domain.Snapshot{
		IDs:  []string{"a", "b"},
		Docs: []string{"Library opens at nine.", "Hostel fees are due in July."},
	}, store.NewSchemaInfo(cfg)))

	p, err := newPipeline(cfg, "", quiet())
	require.NoError(t, err)
	assert.Equal(t, 2, p.corpus.Corpus().Len())

	results, err := p.retrieve.Retrieve(context.Background(), "hostel fees", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.ID)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unirag.yaml")

	require.NoError(t, writeDefaultConfig(path, false))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Corpus.ChunkSize, loaded.Corpus.ChunkSize)
	assert.Equal(t, config.DefaultConfig().LLM.Timeout, loaded.LLM.Timeout)

	assert.Error(t, writeDefaultConfig(path, false), "an existing file is kept without force")
	assert.NoError(t, writeDefaultConfig(path, true))
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	l := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	assert.False(t, l.Enabled(ctx, slog.LevelInfo))
	assert.True(t, l.Enabled(ctx, slog.LevelWarn))

	l = newLogger(config.LoggingConfig{Level: "info"}, true)
	assert.True(t, l.Enabled(ctx, slog.LevelDebug))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "héllo", preview("héllo", 10))
	assert.Equal(t, "hé...", preview("héllo", 2))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1s", formatDuration(500*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}
