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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collectBatches subscribes to w and records every delivered batch.
type collectBatches struct {
	mu      sync.Mutex
	batches [][]ChangeRecord
}

func (c *collectBatches) handler(batch []ChangeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]ChangeRecord, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
}

func (c *collectBatches) records() []ChangeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ChangeRecord
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes. File watcher
// delivery is asynchronous, so tests wait generously instead of sleeping
// fixed amounts.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newStartedWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	opts := DefaultWatcherOptions()
	opts.DebounceWindow = 50 * time.Millisecond

	w, err := NewWatcher(root, &opts)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ProjectFilesListsScan(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.ts"), "a")
	mustWrite(t, filepath.Join(root, "sub", "b.ts"), "b")
	mustWrite(t, filepath.Join(root, ".git", "HEAD"), "ref")

	w := newStartedWatcher(t, root)

	files, err := w.ProjectFiles(false)
	if err != nil {
		t.Fatalf("ProjectFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "a.ts"),
		filepath.Join(root, "sub", "b.ts"),
	}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("ProjectFiles() = %v, want %v (sorted, .git ignored)", files, want)
	}
}

func TestWatcher_EmitsAddOnCreate(t *testing.T) {
	root := t.TempDir()
	w := newStartedWatcher(t, root)

	sink := &collectBatches{}
	w.Subscribe(sink.handler)

	path := filepath.Join(root, "new.ts")
	mustWrite(t, path, "hello")

	waitFor(t, func() bool {
		for _, rec := range sink.records() {
			if rec.Kind == ChangeAdd && rec.FileName == path {
				return true
			}
		}
		return false
	}, "no add record delivered for created file")

	// The snapshot picked it up too.
	files, err := w.ProjectFiles(false)
	if err != nil {
		t.Fatalf("ProjectFiles() error = %v", err)
	}
	found := false
	for _, f := range files {
		if f == path {
			found = true
		}
	}
	if !found {
		t.Errorf("snapshot missing %s after create", path)
	}
}

func TestWatcher_EmitsDeleteOnRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.ts")
	mustWrite(t, path, "x")

	w := newStartedWatcher(t, root)

	sink := &collectBatches{}
	w.Subscribe(sink.handler)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	waitFor(t, func() bool {
		for _, rec := range sink.records() {
			if rec.Kind == ChangeDelete && rec.FileName == path {
				return true
			}
		}
		return false
	}, "no delete record delivered for removed file")
}

func TestWatcher_DebouncesIntoOneBatch(t *testing.T) {
	root := t.TempDir()
	w := newStartedWatcher(t, root)

	sink := &collectBatches{}
	w.Subscribe(sink.handler)

	// Burst of creates inside one debounce window.
	for _, name := range []string{"a.ts", "b.ts", "c.ts"} {
		mustWrite(t, filepath.Join(root, name), "x")
	}

	waitFor(t, func() bool {
		return len(sink.records()) >= 3
	}, "burst records not delivered")

	sink.mu.Lock()
	batches := len(sink.batches)
	sink.mu.Unlock()
	if batches > 2 {
		t.Errorf("burst delivered in %d batches, want coalesced (<=2)", batches)
	}
}

func TestWatcher_ReadFile(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.ts"), "content")

	w := newStartedWatcher(t, root)

	// Absolute and root-relative paths both work.
	got, err := w.ReadFile(filepath.Join(root, "a.ts"))
	if err != nil || got != "content" {
		t.Errorf("ReadFile(abs) = %q, %v; want content, nil", got, err)
	}
	got, err = w.ReadFile("a.ts")
	if err != nil || got != "content" {
		t.Errorf("ReadFile(rel) = %q, %v; want content, nil", got, err)
	}

	_, err = w.ReadFile("missing.ts")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want ErrFileNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("ReadFile(missing) error type = %T, want *NotFoundError", err)
	}
}

func TestWatcher_StopIsIdempotentAndClearsSubscribers(t *testing.T) {
	root := t.TempDir()
	w := newStartedWatcher(t, root)

	w.Subscribe(func([]ChangeRecord) {})
	if w.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", w.SubscriberCount())
	}

	w.Stop()
	w.Stop()

	if w.IsWatching() {
		t.Error("IsWatching() = true after Stop")
	}
	if w.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Stop, want 0", w.SubscriberCount())
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
}
