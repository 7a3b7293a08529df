// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fsevents

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before delivering
	// a batch. Default: 100ms
	DebounceWindow time.Duration

	// IgnorePatterns are glob patterns for files/directories to ignore.
	// Default: [".git", "node_modules", ".idea", "*.swp", "*.tmp"]
	IgnorePatterns []string

	// BufferSize is the size of the change buffer channel.
	// Default: 1000
	BufferSize int
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", ".idea", "*.swp", "*.tmp", "__pycache__"},
		BufferSize:     1000,
	}
}

// Watcher is the fsnotify-backed FileSystem implementation.
//
// # Description
//
// Watches a root directory recursively, converts fsnotify events into
// ChangeRecords, and delivers them to subscribers in debounced batches.
// A dropped fsnotify event (buffer overflow) degrades to a single
// ChangeReset record so consumers rebuild instead of drifting.
//
// # Thread Safety
//
// Safe for concurrent use. Batches are delivered from a single goroutine.
type Watcher struct {
	*Emitter

	root     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []string

	changes  chan ChangeRecord
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	files    map[string]bool
	watching bool
}

// NewWatcher creates a watcher for the given root directory.
//
// The watcher is not started; call Start to begin watching. ProjectFiles
// and ReadFile work before Start (from an on-demand scan).
func NewWatcher(root string, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		Emitter:  NewEmitter(),
		root:     abs,
		watcher:  fsw,
		debounce: opts.DebounceWindow,
		ignore:   opts.IgnorePatterns,
		changes:  make(chan ChangeRecord, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Root returns the absolute root directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Start begins watching for file changes.
//
// Scans the root to seed the file snapshot, adds every directory to the
// fsnotify watch list, and spawns the event processor and debouncer
// goroutines. Both exit when Stop is called or the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if _, err := w.scan(); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher and clears all subscriptions.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.Clear()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// ProjectFiles returns the known project file paths, sorted.
//
// With forceRefresh the root is rescanned; otherwise the maintained
// snapshot is served (scanning on demand if Start has not run yet).
func (w *Watcher) ProjectFiles(forceRefresh bool) ([]string, error) {
	w.mu.RLock()
	seeded := w.files != nil
	w.mu.RUnlock()

	if forceRefresh || !seeded {
		if _, err := w.scan(); err != nil {
			return nil, err
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile returns the content of the file at path.
//
// Relative paths are resolved against the watch root. Missing files fail
// with an error wrapping ErrFileNotFound.
func (w *Watcher) ReadFile(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", err
	}
	return string(data), nil
}

// scan walks the root, rebuilding the file snapshot and the directory
// watch list. Returns the number of files found.
func (w *Watcher) scan() (int, error) {
	files := make(map[string]bool)

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if w.shouldIgnore(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Watch errors for individual directories are non-fatal; a
			// vanished directory just stops producing events.
			if w.IsWatching() {
				_ = w.watcher.Add(path)
			}
			return nil
		}
		files[path] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	return len(files), nil
}

// shouldIgnore reports whether the path matches an ignore pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if base == pattern || strings.Contains(path, string(filepath.Separator)+pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// processEvents converts fsnotify events into ChangeRecords.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			if rec, ok := w.translate(event); ok {
				select {
				case w.changes <- rec:
				default:
					// Buffer full: incremental state is no longer
					// trustworthy. Degrade to a reset.
					slog.Warn("fsevents buffer overflow, emitting reset",
						slog.String("root", w.root))
					w.enqueueReset()
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("fsnotify error, emitting reset",
				slog.String("root", w.root),
				slog.Any("error", err))
			w.enqueueReset()
		}
	}
}

// translate maps an fsnotify event to a ChangeRecord, maintaining the
// file snapshot and the directory watch list as a side effect.
func (w *Watcher) translate(event fsnotify.Event) (ChangeRecord, bool) {
	path := event.Name

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			_ = w.watcher.Add(path)
			return ChangeRecord{}, false
		}
		w.mu.Lock()
		w.files[path] = true
		w.mu.Unlock()
		return ChangeRecord{Kind: ChangeAdd, FileName: path}, true

	case event.Op.Has(fsnotify.Write):
		w.mu.Lock()
		known := w.files[path]
		w.files[path] = true
		w.mu.Unlock()
		if !known {
			return ChangeRecord{Kind: ChangeAdd, FileName: path}, true
		}
		return ChangeRecord{Kind: ChangeUpdate, FileName: path}, true

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		known := w.files[path]
		delete(w.files, path)
		w.mu.Unlock()
		if !known {
			// Directory or untracked file going away.
			return ChangeRecord{}, false
		}
		return ChangeRecord{Kind: ChangeDelete, FileName: path}, true
	}

	return ChangeRecord{}, false
}

// enqueueReset pushes a reset record, dropping it if even that cannot fit.
func (w *Watcher) enqueueReset() {
	select {
	case w.changes <- ChangeRecord{Kind: ChangeReset}:
	default:
	}
}

// debounceLoop batches records and delivers them after a quiet period.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var pending []ChangeRecord
	var timer *time.Timer
	var timeout <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		w.Emit(batch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case rec := <-w.changes:
			pending = append(pending, rec)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timeout = timer.C

		case <-timeout:
			timeout = nil
			flush()
		}
	}
}

// NotFoundError wraps ErrFileNotFound with the offending path.
type NotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return "file not found: " + e.Path
}

// Unwrap makes errors.Is(err, ErrFileNotFound) work.
func (e *NotFoundError) Unwrap() error {
	return ErrFileNotFound
}
