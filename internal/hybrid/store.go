package hybrid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/keyword"
	"github.com/carqa/carqa/internal/vectorstore"
)

// hybridTracer for OpenTelemetry instrumentation.
var hybridTracer = otel.Tracer("carqa.hybrid")

// Config holds configuration for the hybrid store.
type Config struct {
	// IndexName is the logical name for the persisted dense index.
	// Default: "car-articles"
	IndexName string `koanf:"index_name"`

	// PersistDirectory is the filesystem location for durable dense-index
	// artifacts. Default: "./vector_db"
	PersistDirectory string `koanf:"persist_directory"`

	// DenseWeight controls the dense-score contribution, in [0,1].
	// Default: 0.7
	DenseWeight float64 `koanf:"dense_weight"`

	// SparseWeight controls the sparse-score contribution, in [0,1].
	// Default: 0.3
	SparseWeight float64 `koanf:"sparse_weight"`

	// Compress enables gzip compression of persisted dense artifacts.
	Compress bool `koanf:"compress"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.IndexName == "" {
		c.IndexName = "car-articles"
	}
	if c.PersistDirectory == "" {
		c.PersistDirectory = "./vector_db"
	}
	if c.DenseWeight == 0 && c.SparseWeight == 0 {
		c.DenseWeight = 0.7
		c.SparseWeight = 0.3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DenseWeight < 0 || c.DenseWeight > 1 {
		return fmt.Errorf("%w: dense weight %v outside [0,1]", vectorstore.ErrInvalidConfig, c.DenseWeight)
	}
	if c.SparseWeight < 0 || c.SparseWeight > 1 {
		return fmt.Errorf("%w: sparse weight %v outside [0,1]", vectorstore.ErrInvalidConfig, c.SparseWeight)
	}
	return nil
}

// Store is the single entry point for ingestion and hybrid search.
//
// It owns a persistent dense index and an in-memory sparse index. Both
// indexes are exclusively owned by one Store instance; exactly one Store
// should operate against a given persist directory at a time. AddDocuments
// calls are serialized internally; Search against a stable index is safe to
// call concurrently.
type Store struct {
	config Config
	dense  vectorstore.DenseIndex
	sparse *keyword.Index
	logger *zap.Logger

	// mu serializes ingestion and guards corpus. The sparse index is
	// rebuilt from the full accumulated corpus on every add so that
	// queries after multiple batches search everything added within the
	// current process lifetime.
	mu     sync.Mutex
	corpus []vectorstore.Document
}

// New creates a hybrid store, loading a previously persisted dense index
// from PersistDirectory if present.
func New(config Config, embedder vectorstore.Embedder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	dense, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
		PersistDirectory: config.PersistDirectory,
		IndexName:        config.IndexName,
		Compress:         config.Compress,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating dense index: %w", err)
	}

	logger.Info("hybrid store initialized",
		zap.String("index_name", config.IndexName),
		zap.Float64("dense_weight", config.DenseWeight),
		zap.Float64("sparse_weight", config.SparseWeight),
		zap.Int("dense_documents", dense.Count()),
	)

	return &Store{
		config: config,
		dense:  dense,
		sparse: keyword.New(logger),
		logger: logger,
	}, nil
}

// AddDocuments embeds the documents, inserts them into the dense index,
// rebuilds the sparse index from the full accumulated corpus, and persists
// the dense index. An empty batch is a no-op.
//
// There is no rollback on partial failure: if persistence fails after
// insertion the in-memory dense index stays ahead of disk state until the
// next successful add.
func (s *Store) AddDocuments(ctx context.Context, docs []vectorstore.Document) error {
	ctx, span := hybridTracer.Start(ctx, "Store.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dense.Add(ctx, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ingestsTotal.WithLabelValues("error").Inc()
		return err
	}

	s.corpus = append(s.corpus, docs...)
	if err := s.sparse.Rebuild(s.corpus); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ingestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rebuilding sparse index: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	ingestsTotal.WithLabelValues("success").Inc()
	documentsIndexed.Add(float64(len(docs)))
	corpusDocuments.Set(float64(len(s.corpus)))
	ingestDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("documents added",
		zap.Int("count", len(docs)),
		zap.Int("corpus_size", len(s.corpus)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// Search performs hybrid retrieval and returns up to k documents.
//
// The dense path retrieves up to k documents restricted by filter
// (conjunctive equality over metadata) and assigns rank-reciprocal scores.
// The sparse path retrieves up to 2k documents with raw relevance scores and
// is not filtered. The two lists are fused by weighted score addition keyed
// by document content. An empty corpus yields an empty result, never an
// error.
func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]string) ([]vectorstore.Document, error) {
	scored, err := s.search(ctx, query, k, filter, false)
	if err != nil {
		return nil, err
	}
	docs := make([]vectorstore.Document, len(scored))
	for i, r := range scored {
		docs[i] = r.Document
	}
	return docs, nil
}

// SearchWithScores performs the same fusion as Search but retains combined
// scores in the output and widens the dense candidate net to 2k before
// fusing and trimming to k.
func (s *Store) SearchWithScores(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredDocument, error) {
	return s.search(ctx, query, k, filter, true)
}

func (s *Store) search(ctx context.Context, query string, k int, filter map[string]string, withScores bool) ([]ScoredDocument, error) {
	variant := "search"
	if withScores {
		variant = "search_with_scores"
	}

	ctx, span := hybridTracer.Start(ctx, "Store.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("variant", variant),
		attribute.Int("k", k),
		attribute.Int("filter_keys", len(filter)),
	)

	if k <= 0 {
		return []ScoredDocument{}, nil
	}

	start := time.Now()

	denseK := k
	if withScores {
		// Wider net before fusion trims back to k.
		denseK = 2 * k
	}

	denseResults, err := s.dense.Search(ctx, query, denseK, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		searchesTotal.WithLabelValues(variant, "error").Inc()
		return nil, fmt.Errorf("dense search: %w", err)
	}

	sparseResults, err := s.sparse.Search(query, 2*k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		searchesTotal.WithLabelValues(variant, "error").Inc()
		return nil, fmt.Errorf("sparse search: %w", err)
	}

	fused := fuse(rankScores(denseResults), rawScores(sparseResults), s.config.DenseWeight, s.config.SparseWeight, k)

	span.SetAttributes(
		attribute.Int("dense_candidates", len(denseResults)),
		attribute.Int("sparse_candidates", len(sparseResults)),
		attribute.Int("results", len(fused)),
	)
	span.SetStatus(codes.Ok, "success")

	searchesTotal.WithLabelValues(variant, "success").Inc()
	searchDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("hybrid search",
		zap.String("variant", variant),
		zap.Int("k", k),
		zap.Int("dense_candidates", len(denseResults)),
		zap.Int("sparse_candidates", len(sparseResults)),
		zap.Int("results", len(fused)),
	)

	return fused, nil
}

// DenseCount returns the number of documents in the dense index, including
// documents reloaded from disk.
func (s *Store) DenseCount() int {
	return s.dense.Count()
}

// CorpusSize returns the number of documents added within the current
// process lifetime (the sparse index corpus).
func (s *Store) CorpusSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.corpus)
}

// Persistent reports whether the dense index is backed by durable storage.
func (s *Store) Persistent() bool {
	return s.dense.Persistent()
}

// Close releases both indexes.
func (s *Store) Close() error {
	if err := s.sparse.Close(); err != nil {
		s.logger.Warn("failed to close sparse index", zap.Error(err))
	}
	return s.dense.Close()
}
