// Package watcher ingests review files as they land in the articles
// directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/reviews"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// settleDelay is how long a file must stay quiet before it is ingested.
// Scrapers write review files progressively, so reacting to the first
// write would ingest a truncated file.
const settleDelay = 500 * time.Millisecond

// Watcher ingests new review JSON files from a directory as they appear.
type Watcher struct {
	dir       string
	watcher   *fsnotify.Watcher
	processor *reviews.Processor
	logger    *zap.Logger
	stop      chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher over dir. The directory must exist.
func New(dir string, processor *reviews.Processor, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:       dir,
		watcher:   fsw,
		processor: processor,
		logger:    logger,
		stop:      make(chan struct{}),
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching in a background goroutine. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("watching for review files", zap.String("dir", w.dir))
	go w.processEvents(ctx)
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()

		w.mu.Lock()
		defer w.mu.Unlock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule (re)arms the settle timer for path. Every write pushes the
// ingestion back until the file has been quiet for settleDelay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := w.processor.ProcessFile(ctx, path); err != nil {
			w.logger.Warn("skipping review file",
				zap.String("file", filepath.Base(path)),
				zap.Error(err),
			)
		}
	})
}
