package server

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/qa"
	"github.com/carqa/carqa/internal/reviews"
	"github.com/carqa/carqa/internal/vectorstore"
)

// fakeEmbedder produces deterministic bag-of-words embeddings.
type fakeEmbedder struct{}

func (fakeEmbedder) embed(text string) []float32 {
	const dim = 64
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32()%dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

// setupTestServer creates a server over a fresh store, optionally with a
// Q&A service attached.
func setupTestServer(t *testing.T, withAnswerer bool) (*Server, *hybrid.Store) {
	t.Helper()

	store, err := hybrid.New(hybrid.Config{
		PersistDirectory: t.TempDir(),
	}, fakeEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	processor := reviews.NewProcessor(store, zap.NewNop())

	var answerer *qa.Service
	if withAnswerer {
		answerer, err = qa.NewService(qa.Config{
			BaseURL: "http://localhost:1", // Never dialed by these tests.
			Model:   "gpt-4o-mini",
			APIKey:  "test-key",
		}, store, zap.NewNop())
		require.NoError(t, err)
	}

	srv, err := NewServer(store, answerer, processor, zap.NewNop(), Config{Port: 8085})
	require.NoError(t, err)

	return srv, store
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, reviews.NewProcessor(nil, nil), zap.NewNop(), Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)
		_, err := NewServer(srv.store, nil, srv.processor, nil, Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("defaults the port", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)
		s, err := NewServer(srv.store, nil, srv.processor, zap.NewNop(), Config{})
		require.NoError(t, err)
		assert.Equal(t, 8085, s.config.Port)
	})
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleSearch(t *testing.T) {
	seed := []vectorstore.Document{
		{
			ID:      "1",
			Content: "The twin turbo V8 engine delivers savage performance",
			Metadata: map[string]string{
				"make": "bmw", "model": "m5",
			},
		},
		{
			ID:      "2",
			Content: "The electric motor gives instant torque",
			Metadata: map[string]string{
				"make": "tesla", "model": "model 3",
			},
		},
	}

	t.Run("returns fused results", func(t *testing.T) {
		srv, store := setupTestServer(t, false)
		require.NoError(t, store.AddDocuments(context.Background(), seed))

		rec := postJSON(t, srv, "/api/v1/search", SearchRequest{
			Query: "twin turbo V8 engine",
			K:     2,
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, "bmw", resp.Results[0].Metadata["make"])
		assert.Nil(t, resp.Results[0].Score)
	})

	t.Run("includes scores when requested", func(t *testing.T) {
		srv, store := setupTestServer(t, false)
		require.NoError(t, store.AddDocuments(context.Background(), seed))

		rec := postJSON(t, srv, "/api/v1/search", SearchRequest{
			Query:      "electric motor torque",
			K:          2,
			WithScores: true,
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Results)
		require.NotNil(t, resp.Results[0].Score)
		assert.Greater(t, *resp.Results[0].Score, 0.0)
	})

	t.Run("empty corpus yields empty results", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		rec := postJSON(t, srv, "/api/v1/search", SearchRequest{Query: "anything", K: 4})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Results)
	})

	t.Run("requires a query", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		rec := postJSON(t, srv, "/api/v1/search", SearchRequest{K: 4})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("not json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAsk(t *testing.T) {
	t.Run("unavailable without a chat model", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		rec := postJSON(t, srv, "/api/v1/ask", AskRequest{Question: "Is it reliable?"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("requires a question", func(t *testing.T) {
		srv, _ := setupTestServer(t, true)

		rec := postJSON(t, srv, "/api/v1/ask", AskRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleIngest(t *testing.T) {
	t.Run("ingests a review file", func(t *testing.T) {
		srv, store := setupTestServer(t, false)

		path := filepath.Join(t.TempDir(), "bmw-m5-expert-review.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"title": "BMW M5 Review",
			"category": "expert_review",
			"sections": [
				{"heading": "Performance", "content": "Savage acceleration from the V8."}
			]
		}`), 0o644))

		rec := postJSON(t, srv, "/api/v1/ingest", IngestRequest{Path: path})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp IngestResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Documents)
		assert.Equal(t, 1, store.DenseCount())
	})

	t.Run("requires a path", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		rec := postJSON(t, srv, "/api/v1/ingest", IngestRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fails on a missing path", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		rec := postJSON(t, srv, "/api/v1/ingest", IngestRequest{
			Path: filepath.Join(t.TempDir(), "absent.json"),
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleStats(t *testing.T) {
	srv, store := setupTestServer(t, false)
	require.NoError(t, store.AddDocuments(context.Background(), []vectorstore.Document{
		{ID: "1", Content: "a single indexed passage"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.DenseCount)
	assert.Equal(t, 1, resp.CorpusSize)
	assert.True(t, resp.Persistent)
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request id to response", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panics", func(t *testing.T) {
		srv, _ := setupTestServer(t, false)
		srv.echo.GET("/panic", func(c echo.Context) error {
			panic("boom")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			srv.echo.ServeHTTP(rec, req)
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
