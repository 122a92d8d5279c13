package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"unirag/config"
	"unirag/internal/adapter/retriever"
	"unirag/internal/domain"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func embeddingServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		// Reply out of order to exercise index placement.
		for i := range req.Input {
			pos := len(req.Input) - 1 - i
			vec := make([]float64, dim)
			vec[0] = float64(len(req.Input[pos]))
			data[i] = map[string]any{"object": "embedding", "index": pos, "embedding": vec}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(Options{
		APIKey:    "test-key",
		Model:     "nomic-embed-text",
		BaseURL:   srv.URL,
		Dimension: 4,
		BatchSize: 2,
	})
	require.NoError(t, err)

	vectors, err := e.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Len(t, v, 4)
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "expected three batches")
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 3, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(Options{APIKey: "test-key", Model: "m", BaseURL: srv.URL, Dimension: 8})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(Options{
		APIKey:         "test-key",
		Model:          "m",
		BaseURL:        srv.URL,
		RequestOptions: []option.RequestOption{option.WithMaxRetries(0)},
	})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e, err := NewOpenAIEmbedder(Options{APIKey: "k", Model: "m"})
	require.NoError(t, err)

	vectors, err := e.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestNewOpenAIEmbedder_MissingKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(Options{Model: "m"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(256)
	vectors, err := e.Embed(context.Background(), []string{
		"Library opening hours",
		"library hours on weekends",
		"hostel fee refund",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	again, _ := e.Embed(context.Background(), []string{"Library opening hours"})
	assert.Equal(t, vectors[0], again[0], "mock embeddings must be deterministic")

	related := retriever.CosineSimilarity(vectors[0], vectors[1])
	unrelated := retriever.CosineSimilarity(vectors[0], vectors[2])
	assert.Greater(t, related, unrelated)
	assert.Equal(t, 256, e.Dimension())
	assert.Equal(t, "mock", e.ModelName())
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig().Embedding

	e, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, e, "disabled embeddings should yield no embedder")

	cfg.Enabled = true
	cfg.Provider = "mock"
	cfg.Dimension = 16
	e, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimension())

	cfg.Provider = "openai"
	cfg.APIKeyEnv = "UNIRAG_TEST_MISSING_KEY"
	t.Setenv("UNIRAG_TEST_MISSING_KEY", "")
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.Provider = "ollama"
	e, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, e.ModelName())

	cfg.Provider = "nope"
	_, err = New(cfg)
	assert.Error(t, err)
}
