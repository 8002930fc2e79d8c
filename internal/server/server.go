// Package server provides the HTTP API for carqa.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/qa"
	"github.com/carqa/carqa/internal/reviews"
	"github.com/carqa/carqa/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Port int
}

// Server exposes search, ingestion, and Q&A over HTTP.
type Server struct {
	echo      *echo.Echo
	store     *hybrid.Store
	answerer  *qa.Service
	processor *reviews.Processor
	logger    *zap.Logger
	config    Config
}

// NewServer creates a new HTTP server. The answerer may be nil when no chat
// model is configured; /api/v1/ask then reports the capability as
// unavailable.
func NewServer(store *hybrid.Store, answerer *qa.Service, processor *reviews.Processor, logger *zap.Logger, cfg Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Port == 0 {
		cfg.Port = 8085
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		store:     store,
		answerer:  answerer,
		processor: processor,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/ask", s.handleAsk)
	v1.POST("/ingest", s.handleIngest)
	v1.GET("/stats", s.handleStats)
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query      string            `json:"query"`
	K          int               `json:"k"`
	Filter     map[string]string `json:"filter,omitempty"`
	WithScores bool              `json:"with_scores"`
}

// SearchResult is one entry in a SearchResponse.
type SearchResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    *float64          `json:"score,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question        string            `json:"question"`
	Filter          map[string]string `json:"filter,omitempty"`
	PreviousContext string            `json:"previous_context,omitempty"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	Path string `json:"path"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Documents int `json:"documents"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	DenseCount int  `json:"dense_count"`
	CorpusSize int  `json:"corpus_size"`
	Persistent bool `json:"persistent"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.K <= 0 {
		req.K = 4
	}

	resp := SearchResponse{Results: []SearchResult{}}
	if req.WithScores {
		scored, err := s.store.SearchWithScores(c.Request().Context(), req.Query, req.K, req.Filter)
		if err != nil {
			return s.searchError(err)
		}
		for _, r := range scored {
			score := r.Score
			resp.Results = append(resp.Results, SearchResult{
				Content:  r.Document.Content,
				Metadata: r.Document.Metadata,
				Score:    &score,
			})
		}
	} else {
		docs, err := s.store.Search(c.Request().Context(), req.Query, req.K, req.Filter)
		if err != nil {
			return s.searchError(err)
		}
		for _, d := range docs {
			resp.Results = append(resp.Results, SearchResult{
				Content:  d.Content,
				Metadata: d.Metadata,
			})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) searchError(err error) error {
	s.logger.Error("search failed", zap.Error(err))
	if errors.Is(err, vectorstore.ErrEmbeddingFailed) {
		return echo.NewHTTPError(http.StatusBadGateway, "embedding service unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
}

func (s *Server) handleAsk(c echo.Context) error {
	if s.answerer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no chat model configured")
	}

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer, err := s.answerer.Answer(c.Request().Context(), req.Question, req.Filter, req.PreviousContext)
	if err != nil {
		s.logger.Error("answering failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "answering failed")
	}

	return c.JSON(http.StatusOK, AskResponse{Answer: answer})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	docs, err := s.processor.ProcessPath(c.Request().Context(), req.Path)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("path", req.Path), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
	}

	return c.JSON(http.StatusOK, IngestResponse{Documents: docs})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		DenseCount: s.store.DenseCount(),
		CorpusSize: s.store.CorpusSize(),
		Persistent: s.store.Persistent(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
