package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for index operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPersistence indicates a failure reading or writing the durable
	// index artifacts on disk.
	ErrPersistence = errors.New("index persistence failed")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrQuery indicates an underlying index failure during search. Empty
	// result sets are a normal outcome and never produce this error.
	ErrQuery = errors.New("index query failed")
)

// Embedder generates vector embeddings from text.
//
// Implementations can use a local model server (TEI) or a cloud API. The
// dense index treats embeddings as opaque fixed-dimension vectors.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query string.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex is a persistent nearest-neighbor index over embedding vectors.
//
// The index grows via incremental Add calls and persists every added batch
// to durable storage. Search supports an optional metadata filter with
// conjunctive equality semantics: a document matches only if every filter
// key equals the corresponding metadata value.
type DenseIndex interface {
	// Add embeds the documents and inserts them into the index. The index
	// is created on first use. An empty batch is a no-op.
	Add(ctx context.Context, docs []Document) error

	// Search returns up to k documents ordered by similarity (best first),
	// restricted to documents matching the filter when filter is non-nil.
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error)

	// Count returns the number of indexed documents.
	Count() int

	// Persistent reports whether the index is backed by durable storage.
	Persistent() bool

	// Close releases resources held by the index.
	Close() error
}
