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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
)

// InitOptions carries everything the manager needs to go live.
type InitOptions struct {
	// Configs is the initial configuration mapping. May be nil or empty:
	// the registry starts empty and every file routes through the
	// temp-project path.
	Configs *ConfigMap

	// FileSystem is the change event source. Required.
	FileSystem fsevents.FileSystem

	// DefaultLibLocation is where the default analysis libraries live.
	// Shared read-only across instances.
	DefaultLibLocation string

	// WorkingSet is the shared working-set handle. May be nil.
	WorkingSet WorkingSet

	// TempConfig builds single-file fallback configurations. When nil, a
	// generic {"sources": [file], "noOutput": true} mapping is used.
	TempConfig TempConfigFunc
}

// Manager is the project registry: the single source of truth for the live
// name → instance mapping.
//
// # Description
//
// Manager applies configuration diffs by creating, disposing, and updating
// instances, forwards file-change batches to every live instance, and
// answers file-ownership queries through its resolver.
//
// # Concurrency
//
// Configuration updates are serialized: each UpdateProjectConfigs call
// observes the fully settled result of the previous one (opMu is the Go
// rendition of a single-slot in-flight operation that callers chain onto).
// Ownership queries run concurrently with each other and with in-flight
// updates; a query made while a retained instance is mid-update operates
// against that same instance.
type Manager struct {
	factory Factory

	// opMu serializes Init, UpdateProjectConfigs, and Dispose.
	opMu sync.Mutex

	// mu guards configs and instances. Instances appear in the mapping
	// only after their Init resolves.
	mu        sync.RWMutex
	configs   *ConfigMap
	instances map[string]Instance

	fs         fsevents.FileSystem
	defaultLib string
	workingSet WorkingSet
	tempConfig TempConfigFunc
	subID      string

	resolver *resolver

	initialized atomic.Bool
	disposed    atomic.Bool
}

// NewManager creates a manager that builds instances with the given factory.
func NewManager(factory Factory) *Manager {
	m := &Manager{
		factory:   factory,
		instances: make(map[string]Instance),
	}
	m.resolver = newResolver(m)
	return m
}

// Init subscribes to the change event source and creates one instance per
// configured name. Sibling instances initialize concurrently; one failing
// does not stop the others, and the first failure is returned.
func (m *Manager) Init(ctx context.Context, opts InitOptions) error {
	if m.factory == nil {
		return ErrNoFactory
	}
	if opts.FileSystem == nil {
		return ErrNoFileSystem
	}
	if m.disposed.Load() {
		return ErrManagerDisposed
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.fs = opts.FileSystem
	m.defaultLib = opts.DefaultLibLocation
	m.workingSet = opts.WorkingSet
	m.tempConfig = opts.TempConfig
	if m.tempConfig == nil {
		m.tempConfig = defaultTempConfig
	}

	m.subID = m.fs.Subscribe(m.handleChanges)

	configs := opts.Configs
	if configs == nil {
		configs = NewConfigMap()
	}
	m.mu.Lock()
	m.configs = configs
	m.mu.Unlock()

	var g errgroup.Group
	for _, name := range configs.Names() {
		name := name
		config, _ := configs.Get(name)
		g.Go(func() error {
			return m.createAndInit(ctx, name, config)
		})
	}
	err := g.Wait()

	m.initialized.Store(true)

	slog.Info("project manager initialized",
		slog.Int("projects", configs.Len()),
		slog.String("default_lib", m.defaultLib),
	)
	return err
}

// UpdateProjectConfigs diffs the new mapping against current state and
// applies the result: removed instances are disposed synchronously, added
// instances are created and become visible once initialized, retained
// instances receive the replacement configuration.
//
// Calls are serialized relative to each other. Failures of individual
// instances are surfaced to this caller but do not stop sibling instances
// from completing their own init or update.
func (m *Manager) UpdateProjectConfigs(ctx context.Context, newConfigs *ConfigMap) error {
	if m.disposed.Load() {
		return ErrManagerDisposed
	}
	if !m.initialized.Load() {
		return ErrManagerNotInitialized
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	defer func() {
		configUpdateDuration.Observe(time.Since(start).Seconds())
	}()

	if newConfigs == nil {
		newConfigs = NewConfigMap()
	}

	m.mu.RLock()
	old := m.configs
	m.mu.RUnlock()

	diff := DiffConfigs(old, newConfigs)

	ctx, span := tracer.Start(ctx, "Manager.UpdateProjectConfigs",
		trace.WithAttributes(
			attribute.Int("projects.added", len(diff.Added)),
			attribute.Int("projects.removed", len(diff.Removed)),
			attribute.Int("projects.retained", len(diff.Retained)),
		),
	)
	defer span.End()

	// Removed names leave the mapping immediately; disposal is synchronous
	// and best-effort.
	for _, name := range diff.Removed {
		m.mu.Lock()
		inst, ok := m.instances[name]
		delete(m.instances, name)
		m.mu.Unlock()
		if ok {
			inst.Dispose()
			projectsDisposed.WithLabelValues("configured").Inc()
		}
	}

	// The new mapping defines resolution order from here on; added
	// instances stay invisible until their Init resolves.
	m.mu.Lock()
	m.configs = newConfigs
	m.mu.Unlock()

	var g errgroup.Group
	for _, name := range diff.Added {
		name := name
		config, _ := newConfigs.Get(name)
		g.Go(func() error {
			return m.createAndInit(ctx, name, config)
		})
	}
	for _, name := range diff.Retained {
		name := name
		m.mu.RLock()
		inst, ok := m.instances[name]
		m.mu.RUnlock()
		if !ok {
			// Retained name whose earlier init failed: treat as added.
			config, _ := newConfigs.Get(name)
			g.Go(func() error {
				return m.createAndInit(ctx, name, config)
			})
			continue
		}
		config, _ := newConfigs.Get(name)
		g.Go(func() error {
			projectUpdates.Inc()
			if err := inst.Update(ctx, config); err != nil {
				return fmt.Errorf("update project %q: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "config update failed")
		slog.Warn("project config update completed with errors",
			slog.Any("error", err))
	}
	return err
}

// createAndInit builds an instance and makes it visible once Init resolves.
// A failed init disposes the orphan and leaves the name absent.
func (m *Manager) createAndInit(ctx context.Context, name string, config any) error {
	inst := m.factory(name, config, m.fs, m.defaultLib, m.workingSet)
	projectsCreated.WithLabelValues("configured").Inc()

	if err := inst.Init(ctx); err != nil {
		inst.Dispose()
		projectsDisposed.WithLabelValues("configured").Inc()
		return fmt.Errorf("init project %q: %w", name, err)
	}

	m.mu.Lock()
	if _, dup := m.instances[name]; dup {
		m.mu.Unlock()
		inst.Dispose()
		return fmt.Errorf("%w: %q", ErrDuplicateProject, name)
	}
	if m.disposed.Load() {
		m.mu.Unlock()
		inst.Dispose()
		return ErrManagerDisposed
	}
	m.instances[name] = inst
	m.mu.Unlock()
	return nil
}

// handleChanges forwards one batch to every live instance in resolution
// order, then lets the resolver invalidate its temp-project cache.
func (m *Manager) handleChanges(batch []fsevents.ChangeRecord) {
	if m.disposed.Load() {
		return
	}
	changeBatchSize.Observe(float64(len(batch)))

	for _, entry := range m.orderedInstances() {
		entry.inst.ApplyChanges(batch)
	}
	m.resolver.invalidate(batch)
}

// GetProjectForFile resolves which project instance owns fileName, creating
// a temp project when no configured project claims it.
func (m *Manager) GetProjectForFile(ctx context.Context, fileName string) (Instance, error) {
	res, err := m.ResolveFile(ctx, fileName)
	if err != nil {
		return nil, err
	}
	return res.Instance, nil
}

// ResolveFile is GetProjectForFile with full resolution detail.
func (m *Manager) ResolveFile(ctx context.Context, fileName string) (*Resolution, error) {
	if m.disposed.Load() {
		return nil, ErrManagerDisposed
	}
	if !m.initialized.Load() {
		return nil, ErrManagerNotInitialized
	}
	return m.resolver.resolve(ctx, fileName)
}

// Projects returns the live project names in resolution order.
func (m *Manager) Projects() []string {
	names := make([]string, 0)
	for _, entry := range m.orderedInstances() {
		names = append(names, entry.name)
	}
	return names
}

// TempProject returns the owner file of the cached temp project, if any.
func (m *Manager) TempProject() (string, bool) {
	return m.resolver.tempOwner()
}

// Dispose disposes every live instance, including any temp project, and
// unsubscribes from the change event source. Terminal: the manager is not
// reusable afterward. Never fails.
func (m *Manager) Dispose() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.disposed.Swap(true) {
		return
	}

	if m.fs != nil && m.subID != "" {
		m.fs.Unsubscribe(m.subID)
	}

	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]Instance)
	m.mu.Unlock()

	for name, inst := range instances {
		inst.Dispose()
		projectsDisposed.WithLabelValues("configured").Inc()
		slog.Debug("disposed project", slog.String("project", name))
	}

	m.resolver.dispose()

	slog.Info("project manager disposed", slog.Int("projects", len(instances)))
}

// namedInstance pairs an instance with its configured name.
type namedInstance struct {
	name string
	inst Instance
}

// orderedInstances snapshots the live instances in resolution order
// (insertion order of the active configuration mapping).
func (m *Manager) orderedInstances() []namedInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]namedInstance, 0, len(m.instances))
	for _, name := range m.configs.Names() {
		if inst, ok := m.instances[name]; ok {
			out = append(out, namedInstance{name: name, inst: inst})
		}
	}
	return out
}

// defaultTempConfig is the generic single-file fallback configuration.
func defaultTempConfig(fileName string) any {
	return map[string]any{
		"sources":  []string{fileName},
		"noOutput": true,
	}
}
