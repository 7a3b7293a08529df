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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
)

// Resolution is the full answer to "which project owns this file".
type Resolution struct {
	// ProjectName is the configured name, or "temp:<file>" for a fallback.
	ProjectName string

	// Kind is the owning instance's claim on the file.
	Kind FileKind

	// Temp is true when the owning instance is the single-file fallback.
	Temp bool

	// Instance is the owning project instance.
	Instance Instance
}

// tempEntry is the at-most-one cached temp project.
type tempEntry struct {
	ownerFile string
	name      string
	inst      Instance
}

// resolver implements the two-tier file-ownership protocol with the
// temp-project cache. One per Manager.
//
// Repeated queries for the same orphan file must not spin up a fresh
// instance every call; once change events invalidate the premise, the
// cache is dropped so the next query re-resolves honestly. The Manager
// pushes invalidation in (rather than the resolver polling) so that an
// invalidation always completes before a new temp project is created.
type resolver struct {
	m *Manager

	tempMu sync.Mutex
	temp   *tempEntry

	// flight deduplicates concurrent temp-project creation per file.
	flight singleflight.Group
}

func newResolver(m *Manager) *resolver {
	return &resolver{m: m}
}

// resolve walks the configured instances in resolution order: the first
// SOURCE claim wins, then the first REFERENCE claim, then the temp path.
func (r *resolver) resolve(ctx context.Context, fileName string) (*Resolution, error) {
	start := time.Now()
	defer func() {
		resolveDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "Manager.ResolveFile",
		trace.WithAttributes(attribute.String("file", fileName)),
	)
	defer span.End()

	instances := r.m.orderedInstances()

	var sourceOwners []namedInstance
	var firstReference *namedInstance
	for i, entry := range instances {
		switch entry.inst.FileKind(fileName) {
		case FileKindSource:
			sourceOwners = append(sourceOwners, entry)
		case FileKindReference:
			if firstReference == nil {
				firstReference = &instances[i]
			}
		}
	}

	if len(sourceOwners) > 0 {
		if len(sourceOwners) > 1 {
			names := make([]string, len(sourceOwners))
			for i, entry := range sourceOwners {
				names[i] = entry.name
			}
			slog.Warn("file claimed as source by multiple projects, first wins",
				slog.String("file", fileName),
				slog.Any("projects", names),
			)
		}
		winner := sourceOwners[0]
		span.SetAttributes(attribute.String("project", winner.name))
		return &Resolution{
			ProjectName: winner.name,
			Kind:        FileKindSource,
			Instance:    winner.inst,
		}, nil
	}

	if firstReference != nil {
		span.SetAttributes(attribute.String("project", firstReference.name))
		return &Resolution{
			ProjectName: firstReference.name,
			Kind:        FileKindReference,
			Instance:    firstReference.inst,
		}, nil
	}

	res, err := r.tempProjectFor(ctx, fileName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "temp project creation failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("project", res.ProjectName))
	return res, nil
}

// tempProjectFor serves fileName from the cached temp project or creates a
// replacement. Creation disposes any previous temp project first.
func (r *resolver) tempProjectFor(ctx context.Context, fileName string) (*Resolution, error) {
	// Fast path: cache hit.
	r.tempMu.Lock()
	if r.temp != nil && r.temp.inst.ProjectFilesSet()[fileName] {
		entry := r.temp
		r.tempMu.Unlock()
		tempCacheHits.Inc()
		return &Resolution{
			ProjectName: entry.name,
			Kind:        entry.inst.FileKind(fileName),
			Temp:        true,
			Instance:    entry.inst,
		}, nil
	}
	r.tempMu.Unlock()

	v, err, _ := r.flight.Do(fileName, func() (any, error) {
		// Re-check: a concurrent caller may have installed the entry
		// between the fast path and the flight.
		r.tempMu.Lock()
		if r.temp != nil {
			if r.temp.inst.ProjectFilesSet()[fileName] {
				entry := r.temp
				r.tempMu.Unlock()
				tempCacheHits.Inc()
				return entry, nil
			}
			old := r.temp
			r.temp = nil
			old.inst.Dispose()
			projectsDisposed.WithLabelValues("temp").Inc()
		}
		r.tempMu.Unlock()

		tempCacheMisses.Inc()

		name := "temp:" + fileName
		inst := r.m.factory(name, r.m.tempConfig(fileName), r.m.fs, r.m.defaultLib, r.m.workingSet)
		projectsCreated.WithLabelValues("temp").Inc()

		if err := inst.Init(ctx); err != nil {
			inst.Dispose()
			projectsDisposed.WithLabelValues("temp").Inc()
			return nil, fmt.Errorf("create temp project for %q: %w", fileName, err)
		}

		entry := &tempEntry{ownerFile: fileName, name: name, inst: inst}
		r.tempMu.Lock()
		if r.temp != nil {
			// Another file's temp landed while ours initialized. At most
			// one temp project exists at a time: the newer one wins.
			old := r.temp
			r.temp = nil
			old.inst.Dispose()
			projectsDisposed.WithLabelValues("temp").Inc()
		}
		r.temp = entry
		r.tempMu.Unlock()

		slog.Debug("created temp project", slog.String("file", fileName))
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry := v.(*tempEntry)
	return &Resolution{
		ProjectName: entry.name,
		Kind:        entry.inst.FileKind(fileName),
		Temp:        true,
		Instance:    entry.inst,
	}, nil
}

// invalidate drops the cached temp project when a change batch touches it.
// RESET invalidates unconditionally; ADD/UPDATE/DELETE invalidate only when
// the record names the temp owner file or a file in its current file set.
// The entry is cleared and disposed before returning, so no new temp
// project can be created against stale state.
func (r *resolver) invalidate(batch []fsevents.ChangeRecord) {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()

	if r.temp == nil {
		return
	}

	for _, rec := range batch {
		switch {
		case rec.Kind == fsevents.ChangeReset:
			r.dropLocked("reset")
			return
		case rec.FileName == r.temp.ownerFile,
			r.temp.inst.ProjectFilesSet()[rec.FileName]:
			r.dropLocked("change")
			return
		}
	}
}

// dropLocked disposes and clears the temp entry. Caller holds tempMu.
func (r *resolver) dropLocked(reason string) {
	old := r.temp
	r.temp = nil
	old.inst.Dispose()
	projectsDisposed.WithLabelValues("temp").Inc()
	tempInvalidations.WithLabelValues(reason).Inc()

	slog.Debug("temp project invalidated",
		slog.String("file", old.ownerFile),
		slog.String("reason", reason),
	)
}

// tempOwner reports the owner file of the cached temp project, if any.
func (r *resolver) tempOwner() (string, bool) {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()
	if r.temp == nil {
		return "", false
	}
	return r.temp.ownerFile, true
}

// dispose drops the temp project during manager disposal.
func (r *resolver) dispose() {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()
	if r.temp != nil {
		old := r.temp
		r.temp = nil
		old.inst.Dispose()
		projectsDisposed.WithLabelValues("temp").Inc()
	}
}
