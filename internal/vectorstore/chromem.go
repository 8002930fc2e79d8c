package vectorstore

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("carqa.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go dense index.
type ChromemConfig struct {
	// PersistDirectory is the directory for durable index artifacts.
	// Default: "./vector_db"
	PersistDirectory string

	// IndexName is the logical name of the persisted index; it maps to the
	// chromem collection name under PersistDirectory.
	// Default: "car-articles"
	IndexName string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.PersistDirectory == "" {
		c.PersistDirectory = "./vector_db"
	}
	if c.IndexName == "" {
		c.IndexName = "car-articles"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("%w: index name required", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex implements DenseIndex using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. Each added batch is written through to gob files under the
// persist directory, and a previously persisted index is reloaded on
// construction. If the persisted artifacts cannot be read the index degrades
// to an empty in-memory database and logs the condition rather than failing
// construction; the caller decides whether that is acceptable.
type ChromemIndex struct {
	db         *chromem.DB
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger
	persistent bool
}

// NewChromemIndex creates a dense index, loading persisted state if present.
func NewChromemIndex(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(config.PersistDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %v", ErrPersistence, config.PersistDirectory, err)
	}

	persistent := true
	db, err := chromem.NewPersistentDB(config.PersistDirectory, config.Compress)
	if err != nil {
		// Degrade to an empty in-memory index rather than aborting the
		// process; searches continue against whatever gets re-added.
		logger.Warn("failed to load persisted dense index, starting empty in-memory",
			zap.String("persist_directory", config.PersistDirectory),
			zap.Error(err),
		)
		db = chromem.NewDB()
		persistent = false
	}

	idx := &ChromemIndex{
		db:         db,
		embedder:   embedder,
		config:     config,
		logger:     logger,
		persistent: persistent,
	}

	logger.Info("dense index initialized",
		zap.String("persist_directory", config.PersistDirectory),
		zap.String("index_name", config.IndexName),
		zap.Bool("persistent", persistent),
		zap.Int("documents", idx.Count()),
	)

	return idx, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time callback.
func (s *ChromemIndex) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// collection returns the index collection, or nil if nothing was ever added
// or persisted.
func (s *ChromemIndex) collection() *chromem.Collection {
	return s.db.GetCollection(s.config.IndexName, s.embeddingFunc())
}

// Add embeds the documents and inserts them into the index, creating the
// collection on first use. chromem writes each added document through to the
// persist directory, so a successful Add implies a durable batch.
func (s *ChromemIndex) Add(ctx context.Context, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Add")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	collection, err := s.db.GetOrCreateCollection(s.config.IndexName, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: getting/creating collection %s: %v", ErrPersistence, s.config.IndexName, err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: adding documents: %v", ErrPersistence, err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to dense index",
		zap.String("index_name", s.config.IndexName),
		zap.Int("count", len(docs)),
	)

	return nil
}

// Search returns up to k documents ordered by cosine similarity, restricted
// to documents whose metadata matches every filter key.
func (s *ChromemIndex) Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("index_name", s.config.IndexName),
		attribute.Int("k", k),
	)

	if k <= 0 || query == "" {
		return []SearchResult{}, nil
	}

	collection := s.collection()
	if collection == nil {
		// Nothing ingested or persisted yet.
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, filter, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrQuery, s.config.IndexName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Score: r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	return searchResults, nil
}

// Count returns the number of indexed documents.
func (s *ChromemIndex) Count() int {
	collection := s.collection()
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// Persistent reports whether the index survived construction with durable
// storage attached.
func (s *ChromemIndex) Persistent() bool {
	return s.persistent
}

// Close closes the index. chromem persists on write, no flush is needed.
func (s *ChromemIndex) Close() error {
	s.logger.Debug("dense index closed", zap.String("index_name", s.config.IndexName))
	return nil
}

// Ensure ChromemIndex implements DenseIndex.
var _ DenseIndex = (*ChromemIndex)(nil)
