package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/config"
	"github.com/carqa/carqa/internal/embeddings"
	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/logging"
	"github.com/carqa/carqa/internal/reviews"
)

// app holds the wired core services shared by every subcommand.
type app struct {
	config    *config.Config
	logger    *zap.Logger
	embedder  embeddings.Provider
	store     *hybrid.Store
	processor *reviews.Processor
}

// newApp loads configuration and wires the retrieval core: embedding
// provider, hybrid store, and review processor.
func newApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	embedder, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding provider: %w", err)
	}

	store, err := hybrid.New(cfg.Store, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("initializing hybrid store: %w", err)
	}

	logger.Info("store ready",
		zap.String("index", cfg.Store.IndexName),
		zap.Int("documents", store.DenseCount()),
		zap.Bool("persistent", store.Persistent()),
	)

	return &app{
		config:    cfg,
		logger:    logger,
		embedder:  embedder,
		store:     store,
		processor: reviews.NewProcessor(store, logger),
	}, nil
}

// Close releases all resources.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync() // Best-effort sync
	}
}
