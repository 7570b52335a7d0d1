// Package watch imports FAQ batches dropped as JSON files into a directory.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Importer indexes a batch of FAQ items; satisfied by faqindex.Manager.
type Importer interface {
	BulkIndex(ctx context.Context, items []models.FAQItem) (int, error)
}

// Watcher watches a drop directory for *.json files holding FAQ item
// arrays and bulk-indexes each one. Processed files are renamed with an
// .imported suffix so they are not picked up again.
type Watcher struct {
	dir      string
	importer Importer
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for import events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over dir feeding importer.
func NewWatcher(dir string, importer Importer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:         dir,
		importer:    importer,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Files already present in the directory are
// imported first. Runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create import dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch import dir: %w", err)
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.importExisting(ctx)

	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		for _, timer := range w.debounceMap {
			timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isImportFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("import watcher error", zap.Error(err))
			}
		}
	}
}

// schedule debounces repeated events for the same file (editors and copies
// emit several writes) and imports once the file settles.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.importFile(ctx, path)
	})
}

func (w *Watcher) importExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("read import dir failed", zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isImportFile(entry.Name()) {
			continue
		}
		w.importFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// importFile parses path as a FAQ item array, bulk-indexes it sequentially,
// and renames the file out of the way. Parse and index failures leave the
// file in place for inspection.
func (w *Watcher) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("read import file failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	var items []models.FAQItem
	if err := json.Unmarshal(data, &items); err != nil {
		if w.logger != nil {
			w.logger.Warn("parse import file failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	n, err := w.importer.BulkIndex(ctx, items)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("bulk import failed",
				zap.String("path", path), zap.Int("applied", n), zap.Error(err))
		}
		return
	}
	if err := os.Rename(path, path+".imported"); err != nil && w.logger != nil {
		w.logger.Warn("archive import file failed", zap.String("path", path), zap.Error(err))
	}
	if w.logger != nil {
		w.logger.Info("import file indexed", zap.String("path", path), zap.Int("faqs", n))
	}
}

func isImportFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
