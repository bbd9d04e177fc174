package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/docrag/internal/loader"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before syncing.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher re-ingests documents as they change under a docs directory and
// removes the points of deleted documents.
type Watcher struct {
	pipeline *Pipeline
	filter   *loader.Filter
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger
	// synced, when set, receives the paths handled by each flush.
	synced func(paths []string)
}

// NewWatcher watches docsDir and every non-skipped directory below it.
// A zero debounce uses DefaultDebounce.
func NewWatcher(p *Pipeline, docsDir string, debounce time.Duration) (*Watcher, error) {
	filter, err := loader.NewFilter(docsDir, p.cfg.Loader)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		pipeline: p,
		filter:   filter,
		fsw:      fsw,
		debounce: debounce,
		logger:   p.logger.Named("watcher"),
	}
	if err := w.addTree(filter.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and its non-skipped subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(p); rel != "." && w.filter.SkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) rel(p string) string {
	rel, err := filepath.Rel(w.filter.Root(), p)
	if err != nil {
		return ".."
	}
	return filepath.ToSlash(rel)
}

// Run processes events until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Info(ctx, "watching for changes",
		zap.String("docs_dir", w.filter.Root()),
		zap.Duration("debounce", w.debounce),
	)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ctx, ev, pending) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "filesystem watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx, pending)
		}
	}
}

// handle records ev in pending and reports whether anything was queued.
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event, pending map[string]struct{}) bool {
	rel := w.rel(ev.Name)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.filter.SkipDir(rel) {
				return false
			}
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn(ctx, "could not watch new directory", zap.String("path", rel), zap.Error(err))
			}
			queued := false
			_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && w.filter.Match(w.rel(p)) {
					pending[w.rel(p)] = struct{}{}
					queued = true
				}
				return nil
			})
			return queued
		}
	}

	if !w.filter.Match(rel) {
		return false
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		pending[rel] = struct{}{}
		return true
	}
	return false
}

// flush re-ingests existing pending files and removes missing ones.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for rel := range pending {
		paths = append(paths, rel)
		delete(pending, rel)
	}
	sort.Strings(paths)

	root := w.filter.Root()
	for _, rel := range paths {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		dctx := logging.WithSourceID(ctx, rel)

		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			if err := w.pipeline.RemoveSource(dctx, rel); err != nil {
				w.logger.Error(dctx, "failed to remove document", zap.Error(err))
			}
			continue
		}

		sum, err := w.pipeline.IngestFile(dctx, root, abs)
		if err != nil {
			w.logger.Error(dctx, "failed to re-ingest document", zap.Error(err))
			continue
		}
		w.logger.Info(dctx, "re-ingested document",
			zap.Int("chunks", sum.Chunks),
			zap.Int("points", sum.Points),
			zap.Int("failed_batches", sum.FailedBatches),
		)
	}
	if w.synced != nil {
		w.synced(paths)
	}
}
