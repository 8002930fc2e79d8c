package reviews

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/vectorstore"
)

// chunkSizes maps review categories to chunk sizes. Long-term reviews read
// as continuous narrative and tolerate slightly larger chunks.
var chunkSizes = map[string]int{
	"expert_review":    1000,
	"long_term_review": 1200,
}

const defaultChunkSize = 1000

// chunkSizeFor returns the chunk size for a review category.
func chunkSizeFor(category string) int {
	key := strings.ToLower(category)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if size, ok := chunkSizes[key]; ok {
		return size
	}
	return defaultChunkSize
}

// Processor turns raw review files into chunked documents and feeds them to
// the hybrid store.
type Processor struct {
	store  *hybrid.Store
	logger *zap.Logger
}

// NewProcessor creates a review processor.
func NewProcessor(store *hybrid.Store, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: store, logger: logger}
}

// ChunkReview splits a review's sections into documents carrying the
// review's metadata. Chunk size depends on the review category, with an
// overlap of an eighth of the chunk size.
func ChunkReview(review *Review) ([]vectorstore.Document, error) {
	size := chunkSizeFor(review.Category)
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(size/8),
	)

	metadata := review.Metadata()

	var docs []vectorstore.Document
	for _, section := range review.Sections {
		if strings.TrimSpace(section.Content) == "" {
			continue
		}
		chunks, err := splitter.SplitText(section.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting section %q: %w", section.Heading, err)
		}
		for _, chunk := range chunks {
			docs = append(docs, vectorstore.Document{
				ID:       uuid.NewString(),
				Content:  chunk,
				Metadata: metadata,
			})
		}
	}
	return docs, nil
}

// ProcessFile loads, chunks and ingests a single review file. It returns
// the ingested documents.
func (p *Processor) ProcessFile(ctx context.Context, path string) ([]vectorstore.Document, error) {
	review, err := LoadReview(path)
	if err != nil {
		return nil, err
	}

	docs, err := ChunkReview(review)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", path, err)
	}

	if err := p.store.AddDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", path, err)
	}

	p.logger.Info("review ingested",
		zap.String("file", path),
		zap.String("make", review.CarDetails.Make),
		zap.String("model", review.CarDetails.Model),
		zap.Int("chunks", len(docs)),
	)

	return docs, nil
}

// ProcessPath ingests a review file or, when path is a directory, every
// review file under it. Returns the number of documents ingested.
func (p *Processor) ProcessPath(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if info.IsDir() {
		return p.ProcessDirectory(ctx, path)
	}
	docs, err := p.ProcessFile(ctx, path)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// ProcessDirectory ingests every review JSON file under dir, recursively.
// Files that fail are logged and skipped so one bad scrape cannot block the
// rest of the corpus; only context cancellation aborts the walk. Returns
// the number of documents ingested.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		docs, err := p.ProcessFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("skipping review file", zap.String("file", path), zap.Error(err))
			return nil
		}
		total += len(docs)
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("processing directory %s: %w", dir, err)
	}
	return total, nil
}
