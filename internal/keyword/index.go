// Package keyword provides the in-memory sparse (term-frequency) index used
// by the hybrid retrieval engine.
//
// The index is backed by Bleve and is rebuilt from the full accumulated
// corpus every time documents are added. It is never persisted; after a
// process restart it stays empty until documents are re-added.
package keyword

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/vectorstore"
)

// indexedDoc is the shape Bleve indexes per document.
type indexedDoc struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// Index is an in-memory Bleve index over a document corpus.
//
// Rebuild swaps in a freshly built index atomically, so concurrent Search
// calls always see a complete corpus.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]vectorstore.Document
	logger *zap.Logger
}

// New creates an empty keyword index.
func New(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{logger: logger}
}

// newMapping builds the Bleve index mapping.
// Standard analyzer (lowercase + tokenize, no stemming) so queries match the
// exact word; the English analyzer stems e.g. "reliability" -> "reliabl"
// which skews term statistics for short review queries.
func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)

	im.DefaultType = "document"
	im.AddDocumentMapping("document", docMapping)
	im.DefaultMapping = docMapping

	return im
}

// Rebuild replaces the index contents with exactly the given corpus.
//
// Bleve has no cheap way to rescore an incrementally mutated in-memory index
// against fresh corpus statistics, so a full rebuild keeps IDF honest for an
// append-mostly collection of this size.
func (x *Index) Rebuild(docs []vectorstore.Document) error {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("creating keyword index: %w", err)
	}

	byID := make(map[string]vectorstore.Document, len(docs))
	batch := index.NewBatch()
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = fmt.Sprintf("doc_%d", i)
		}
		byID[id] = doc
		if err := batch.Index(id, indexedDoc{
			Content: doc.Content,
			Title:   doc.Metadata["title"],
		}); err != nil {
			return fmt.Errorf("indexing document %s: %w", id, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return fmt.Errorf("applying keyword index batch: %w", err)
	}

	x.mu.Lock()
	old := x.index
	x.index = index
	x.docs = byID
	x.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			x.logger.Warn("failed to close previous keyword index", zap.Error(err))
		}
	}

	x.logger.Debug("keyword index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

// Search returns up to limit documents ranked by keyword relevance, with
// raw (unnormalized) scores. The scale depends on corpus statistics.
func (x *Index) Search(query string, limit int) ([]vectorstore.SearchResult, error) {
	x.mu.RLock()
	index := x.index
	docs := x.docs
	x.mu.RUnlock()

	if index == nil || limit <= 0 || query == "" {
		return []vectorstore.SearchResult{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit

	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", vectorstore.ErrQuery, err)
	}

	out := make([]vectorstore.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := docs[hit.ID]
		if !ok {
			continue
		}
		out = append(out, vectorstore.SearchResult{
			Document: doc,
			Score:    float32(hit.Score),
		})
	}
	return out, nil
}

// Count returns the number of documents in the current corpus.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Close releases the underlying Bleve index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.index == nil {
		return nil
	}
	err := x.index.Close()
	x.index = nil
	x.docs = nil
	return err
}
