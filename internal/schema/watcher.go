package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves a descriptor file and reloads it when the file changes.
// A reload that fails to parse keeps the previous descriptor.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu         sync.RWMutex
	descriptor Descriptor
}

func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	descriptor, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create schema watcher: %w", err)
	}
	// Editors often replace files by rename, so watch the directory.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch schema dir: %w", err)
	}
	return &Watcher{
		path:       filepath.Clean(path),
		logger:     logger,
		watcher:    fsw,
		descriptor: descriptor,
	}, nil
}

func (w *Watcher) Descriptor() Descriptor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.descriptor
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log().Warn("schema watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	descriptor, err := LoadFile(w.path)
	if err != nil {
		w.log().Warn("schema reload failed; keeping previous descriptor", slog.String("path", w.path), slog.Any("error", err))
		return
	}
	w.mu.Lock()
	w.descriptor = descriptor
	w.mu.Unlock()
	w.log().Info("schema descriptor reloaded", slog.String("path", w.path), slog.String("table", descriptor.Table), slog.Int("columns", len(descriptor.Columns)))
}

func (w *Watcher) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}
