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
	"sort"
	"sync"
)

// MemFS is an in-memory FileSystem.
//
// It backs tests and tooling that need a scriptable change event source:
// mutations through AddFile/UpdateFile/RemoveFile/Reset emit the
// corresponding change batches to subscribers synchronously.
//
// Thread Safety: MemFS is safe for concurrent use, but emitted batches run
// handlers on the mutating goroutine (same delivery model as Watcher's
// single dispatch goroutine).
type MemFS struct {
	*Emitter

	mu    sync.RWMutex
	files map[string]string

	refreshCount int
}

// NewMemFS creates a MemFS seeded with the given path→content files.
func NewMemFS(files map[string]string) *MemFS {
	seeded := make(map[string]string, len(files))
	for p, content := range files {
		seeded[p] = content
	}
	return &MemFS{Emitter: NewEmitter(), files: seeded}
}

// ProjectFiles returns all known paths, sorted.
func (m *MemFS) ProjectFiles(forceRefresh bool) ([]string, error) {
	m.mu.Lock()
	if forceRefresh {
		m.refreshCount++
	}
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	sort.Strings(paths)
	return paths, nil
}

// ReadFile returns the content at path, or an error wrapping ErrFileNotFound.
func (m *MemFS) ReadFile(path string) (string, error) {
	m.mu.RLock()
	content, ok := m.files[path]
	m.mu.RUnlock()

	if !ok {
		return "", &NotFoundError{Path: path}
	}
	return content, nil
}

// RefreshCount returns how many forced rescans were requested.
func (m *MemFS) RefreshCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshCount
}

// AddFile inserts a file and emits an add record.
func (m *MemFS) AddFile(path, content string) {
	m.mu.Lock()
	m.files[path] = content
	m.mu.Unlock()

	m.Emit([]ChangeRecord{{Kind: ChangeAdd, FileName: path}})
}

// UpdateFile replaces a file's content and emits an update record.
func (m *MemFS) UpdateFile(path, content string) {
	m.mu.Lock()
	m.files[path] = content
	m.mu.Unlock()

	m.Emit([]ChangeRecord{{Kind: ChangeUpdate, FileName: path}})
}

// RemoveFile deletes a file and emits a delete record.
func (m *MemFS) RemoveFile(path string) {
	m.mu.Lock()
	delete(m.files, path)
	m.mu.Unlock()

	m.Emit([]ChangeRecord{{Kind: ChangeDelete, FileName: path}})
}

// Reset replaces the whole file set and emits a reset record.
func (m *MemFS) Reset(files map[string]string) {
	seeded := make(map[string]string, len(files))
	for p, content := range files {
		seeded[p] = content
	}

	m.mu.Lock()
	m.files = seeded
	m.mu.Unlock()

	m.Emit([]ChangeRecord{{Kind: ChangeReset}})
}

// EmitBatch delivers an arbitrary pre-built batch to subscribers without
// touching the file map. Intended for tests that need precise batch shapes.
func (m *MemFS) EmitBatch(batch []ChangeRecord) {
	m.Emit(batch)
}
