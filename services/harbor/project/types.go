// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"context"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
)

// =============================================================================
// FILE KIND
// =============================================================================

// FileKind is the relationship of a file to a project, as reported by the
// project instance itself. Higher values outrank lower ones during
// ownership resolution.
type FileKind int

const (
	// FileKindNone means the project makes no claim on the file.
	FileKindNone FileKind = iota

	// FileKindReference means the file is pulled in as a reference
	// (default libraries, transitively referenced sources).
	FileKindReference

	// FileKindSource means the file is one of the project's own sources.
	FileKindSource
)

// String returns a human-readable kind name.
func (k FileKind) String() string {
	switch k {
	case FileKindSource:
		return "source"
	case FileKindReference:
		return "reference"
	default:
		return "none"
	}
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Instance is one analysis project, configured or temporary.
//
// The two variants are not distinguished by type: the manager constructs
// configured instances from the active configuration mapping and temporary
// instances from a single-file fallback config, both through the same
// Factory, and tracks them differently.
//
// Lifecycle: created → Init (async) → zero or more Update/ApplyChanges →
// Dispose (synchronous, terminal). A disposed instance must fail subsequent
// Init and Update calls rather than silently succeeding.
type Instance interface {
	// Init prepares the instance for queries. Blocking work suspends on ctx.
	Init(ctx context.Context) error

	// Update pushes a replacement configuration to a live instance.
	Update(ctx context.Context, config any) error

	// ApplyChanges applies one ordered file-change batch.
	ApplyChanges(batch []fsevents.ChangeRecord)

	// Dispose releases the instance. Synchronous, idempotent, never fails.
	Dispose()

	// FileKind reports the file's relationship to this project.
	// Synchronous, pure query.
	FileKind(fileName string) FileKind

	// ProjectFilesSet returns the current file membership as a set.
	// Synchronous, pure query.
	ProjectFilesSet() map[string]bool
}

// Factory creates a project instance. The file-system handle, default
// library location, and working set are shared read-only across instances.
type Factory func(name string, config any, fs fsevents.FileSystem, defaultLibLocation string, workingSet WorkingSet) Instance

// WorkingSet is the shared editor working-set handle. Harbor only passes it
// through to instances; tracking the set itself is not this manager's job.
type WorkingSet interface {
	// Files returns the paths currently open in the editor.
	Files() []string
}

// TempConfigFunc builds the configuration for a single-file fallback
// project rooted at fileName.
type TempConfigFunc func(fileName string) any

// =============================================================================
// ORDERED CONFIGURATION MAPPING
// =============================================================================

// ConfigMap is an insertion-ordered mapping of project name → configuration.
//
// Resolution order is defined as the insertion order of this mapping, which
// Go's builtin map cannot provide. Configurations are opaque to the
// manager: equality is by key presence only.
//
// ConfigMap is not safe for concurrent mutation; build it, then hand it to
// the manager.
type ConfigMap struct {
	names  []string
	values map[string]any
}

// NewConfigMap creates an empty mapping.
func NewConfigMap() *ConfigMap {
	return &ConfigMap{values: make(map[string]any)}
}

// Set adds or replaces the configuration for name. A replaced name keeps
// its original position.
func (m *ConfigMap) Set(name string, config any) *ConfigMap {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = config
	return m
}

// Get returns the configuration for name.
func (m *ConfigMap) Get(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Has reports whether name is present.
func (m *ConfigMap) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[name]
	return ok
}

// Names returns the project names in insertion order.
func (m *ConfigMap) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Len returns the number of entries.
func (m *ConfigMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}
