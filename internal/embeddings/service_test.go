package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingResponse mirrors the OpenAI embeddings API response shape.
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// newEmbeddingServer serves a minimal OpenAI-compatible /embeddings endpoint
// returning one three-dimensional vector per input.
func newEmbeddingServer(t *testing.T, onRequest func(r *http.Request)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onRequest != nil {
			onRequest(r)
		}

		var req struct {
			Input any    `json:"input"`
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		count := 1
		if inputs, ok := req.Input.([]any); ok {
			count = len(inputs)
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i := 0; i < count; i++ {
			resp.Data = append(resp.Data, embeddingData{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{0.1, 0.2, 0.3},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewService(t *testing.T) {
	t.Run("requires a base url", func(t *testing.T) {
		_, err := NewService(Config{Model: "BAAI/bge-small-en-v1.5"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("requires a model", func(t *testing.T) {
		_, err := NewService(Config{BaseURL: "http://localhost:8080/v1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("accepts a valid config without an api key", func(t *testing.T) {
		svc, err := NewService(Config{
			BaseURL: "http://localhost:8080/v1",
			Model:   "BAAI/bge-small-en-v1.5",
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestEmbedDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("returns one embedding per text", func(t *testing.T) {
		server := newEmbeddingServer(t, nil)
		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model"})
		require.NoError(t, err)

		vectors, err := svc.EmbedDocuments(ctx, []string{"first passage", "second passage"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	})

	t.Run("rejects empty input", func(t *testing.T) {
		server := newEmbeddingServer(t, nil)
		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model"})
		require.NoError(t, err)

		_, err = svc.EmbedDocuments(ctx, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model"})
		require.NoError(t, err)

		_, err = svc.EmbedDocuments(ctx, []string{"text"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("sends bearer token when configured", func(t *testing.T) {
		var gotAuth string
		server := newEmbeddingServer(t, func(r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
		})

		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model", APIKey: "secret"})
		require.NoError(t, err)

		_, err = svc.EmbedDocuments(ctx, []string{"text"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer secret", gotAuth)
	})
}

func TestEmbedQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a single embedding", func(t *testing.T) {
		server := newEmbeddingServer(t, nil)
		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model"})
		require.NoError(t, err)

		vector, err := svc.EmbedQuery(ctx, "how reliable is it")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		server := newEmbeddingServer(t, nil)
		svc, err := NewService(Config{BaseURL: server.URL, Model: "test-model"})
		require.NoError(t, err)

		_, err = svc.EmbedQuery(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("builds a tei provider", func(t *testing.T) {
		provider, err := NewProvider(ProviderConfig{
			BaseURL: "http://localhost:8080/v1",
			Model:   "Alibaba-NLP/gte-large-en-v1.5",
		})
		require.NoError(t, err)
		defer provider.Close()

		assert.Equal(t, 1024, provider.Dimension())
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{
			Provider: "astrology",
			BaseURL:  "http://localhost:8080/v1",
			Model:    "test-model",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"Alibaba-NLP/gte-large-en-v1.5", 1024},
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"some-unknown-base-model", 768},
		{"some-unknown-small-model", 384},
		{"completely-unknown", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
