package vectorstore

// Document is the unit of retrievable text.
//
// Two documents with identical Content are treated as the same entity during
// result fusion; Content is the dedup key, not ID.
type Document struct {
	// ID uniquely identifies the document within the index.
	ID string

	// Content is the passage text.
	Content string

	// Metadata holds flat, producer-defined attributes used for equality
	// filtering. Common keys: make, model, body_type, model_year, category,
	// title. Values are never interpreted semantically.
	Metadata map[string]string
}

// SearchResult is a document returned from a similarity search.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Score is the raw similarity score from the underlying index
	// (cosine similarity for the dense index, higher is more similar).
	Score float32
}
