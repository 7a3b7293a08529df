// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
	"github.com/AleutianAI/harbor/services/harbor/project"
)

// Project is Harbor's default project.Instance implementation.
//
// # Description
//
// Membership-based analysis unit: the file set is seeded from the file
// system listing filtered through the configured source globs, and kept in
// sync by applying change batches incrementally. Files under the default
// library location are tracked as references; everything the globs select
// is a source.
//
// # Lifecycle
//
// New → Init (seeds the file sets) → Update/ApplyChanges as configs and
// files change → Dispose. Init and Update on a disposed project fail with
// project.ErrProjectDisposed; Dispose itself is idempotent and never fails.
//
// # Thread Safety
//
// Safe for concurrent use. Queries (FileKind, ProjectFilesSet) may run
// while an Update is in flight and observe either the pre- or post-update
// file sets.
type Project struct {
	name       string
	rawConfig  any
	fs         fsevents.FileSystem
	defaultLib string
	workingSet project.WorkingSet

	mu         sync.RWMutex
	config     Config
	sources    map[string]bool
	references map[string]bool
	ready      bool
	disposed   bool
}

// New creates an uninitialized project. Matches project.Factory.
func New(name string, config any, fs fsevents.FileSystem, defaultLibLocation string, workingSet project.WorkingSet) project.Instance {
	return &Project{
		name:       name,
		rawConfig:  config,
		fs:         fs,
		defaultLib: defaultLibLocation,
		workingSet: workingSet,
		sources:    make(map[string]bool),
		references: make(map[string]bool),
	}
}

// Name returns the project name.
func (p *Project) Name() string {
	return p.name
}

// Init parses the configuration and seeds the file sets.
//
// Literal source paths that the listing does not contain are probed with
// ReadFile, so a single-file project rooted at an unreadable file fails
// here — which is exactly how the resolver surfaces lookup failures for
// files that do not exist.
func (p *Project) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return project.ErrProjectDisposed
	}
	if p.fs == nil {
		return fmt.Errorf("project %q: %w", p.name, project.ErrNoFileSystem)
	}

	cfg, err := ParseConfig(p.rawConfig)
	if err != nil {
		return fmt.Errorf("project %q: %w", p.name, err)
	}
	p.config = cfg

	if err := p.seedLocked(false); err != nil {
		return fmt.Errorf("project %q: %w", p.name, err)
	}
	p.ready = true

	slog.Debug("analysis project initialized",
		slog.String("project", p.name),
		slog.Int("sources", len(p.sources)),
		slog.Int("references", len(p.references)),
	)
	return nil
}

// Update replaces the configuration and reseeds the file sets. The same
// instance keeps serving queries while the update runs.
func (p *Project) Update(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := ParseConfig(config)
	if err != nil {
		return fmt.Errorf("project %q: %w", p.name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return project.ErrProjectDisposed
	}
	p.config = cfg
	p.rawConfig = config
	if err := p.seedLocked(false); err != nil {
		return fmt.Errorf("project %q: %w", p.name, err)
	}
	return nil
}

// ApplyChanges applies one ordered change batch to the file sets.
// A reset record reseeds from a forced rescan; everything after it in the
// same batch is already reflected by that rescan and is skipped.
func (p *Project) ApplyChanges(batch []fsevents.ChangeRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || !p.ready {
		return
	}

	for _, rec := range batch {
		switch rec.Kind {
		case fsevents.ChangeReset:
			if err := p.seedLocked(true); err != nil {
				slog.Warn("reset reseed failed",
					slog.String("project", p.name),
					slog.Any("error", err),
				)
			}
			return

		case fsevents.ChangeAdd, fsevents.ChangeUpdate:
			p.admitLocked(rec.FileName)

		case fsevents.ChangeDelete:
			delete(p.sources, rec.FileName)
			delete(p.references, rec.FileName)
		}
	}
}

// Dispose releases the project. Idempotent, never fails.
func (p *Project) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return
	}
	p.disposed = true
	p.ready = false
	p.sources = make(map[string]bool)
	p.references = make(map[string]bool)
}

// FileKind reports this project's claim on fileName.
func (p *Project) FileKind(fileName string) project.FileKind {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.disposed:
		return project.FileKindNone
	case p.sources[fileName]:
		return project.FileKindSource
	case p.references[fileName]:
		return project.FileKindReference
	default:
		return project.FileKindNone
	}
}

// ProjectFilesSet returns the current membership (sources and references).
func (p *Project) ProjectFilesSet() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]bool, len(p.sources)+len(p.references))
	for f := range p.sources {
		out[f] = true
	}
	for f := range p.references {
		out[f] = true
	}
	return out
}

// seedLocked rebuilds both file sets from the file system. Caller holds mu.
func (p *Project) seedLocked(forceRefresh bool) error {
	listing, err := p.fs.ProjectFiles(forceRefresh)
	if err != nil {
		return err
	}

	sources := make(map[string]bool)
	references := make(map[string]bool)
	listed := make(map[string]bool, len(listing))

	for _, file := range listing {
		listed[file] = true
		if p.isDefaultLib(file) {
			references[file] = true
			continue
		}
		if p.config.matches(file) {
			sources[file] = true
		}
	}

	// Literal sources outside the listing must at least be readable;
	// this is the existence probe for single-file projects.
	for _, pattern := range p.config.Sources {
		if isGlob(pattern) || listed[pattern] {
			continue
		}
		if _, err := p.fs.ReadFile(pattern); err != nil {
			return err
		}
		sources[pattern] = true
	}

	p.sources = sources
	p.references = references
	return nil
}

// admitLocked classifies one appearing/changing file. Caller holds mu.
func (p *Project) admitLocked(file string) {
	if p.isDefaultLib(file) {
		p.references[file] = true
		return
	}
	if p.config.matches(file) {
		p.sources[file] = true
	}
}

func (p *Project) isDefaultLib(file string) bool {
	return p.defaultLib != "" && strings.HasPrefix(file, p.defaultLib+string(filepath.Separator))
}

// matches reports whether file is selected by Sources and not Excludes.
func (c Config) matches(file string) bool {
	if !matchesAny(c.Sources, file) {
		return false
	}
	return !matchesAny(c.Excludes, file)
}

func matchesAny(patterns []string, file string) bool {
	for _, pattern := range patterns {
		if pattern == file {
			return true
		}
		if ok, _ := filepath.Match(pattern, file); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(file)); ok {
			return true
		}
	}
	return false
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
