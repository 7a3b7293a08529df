// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package harbor exposes the project registry over HTTP.
//
// The service wraps a project.Manager: configuration updates and file
// ownership queries arrive as /v1/harbor/* requests and are forwarded to
// the manager, which owns all lifecycle and ordering semantics.
package harbor

import (
	"context"
	"time"

	"github.com/AleutianAI/harbor/services/harbor/analysis"
	"github.com/AleutianAI/harbor/services/harbor/fsevents"
	"github.com/AleutianAI/harbor/services/harbor/project"
)

// ServiceVersion is the Harbor service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures the Harbor service.
type ServiceConfig struct {
	// DefaultLibLocation is the directory whose files every project
	// tracks as references. Optional.
	DefaultLibLocation string

	// ResolveTimeout bounds a single ownership query, including temp
	// project creation. Default: 10s
	ResolveTimeout time.Duration

	// UpdateTimeout bounds a full configuration update. Default: 60s
	UpdateTimeout time.Duration
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ResolveTimeout: 10 * time.Second,
		UpdateTimeout:  60 * time.Second,
	}
}

// Service is the Harbor service.
//
// Thread Safety: safe for concurrent use; all synchronization lives in
// the underlying manager.
type Service struct {
	config  ServiceConfig
	manager *project.Manager
}

// NewService creates a Harbor service around a manager built with the
// default analysis factory. The manager is not initialized yet; call Init.
func NewService(config ServiceConfig) *Service {
	return &Service{
		config:  config,
		manager: project.NewManager(analysis.New),
	}
}

// NewServiceWithManager wraps an existing manager. Used by tests and by
// callers that need a non-default factory.
func NewServiceWithManager(config ServiceConfig, manager *project.Manager) *Service {
	return &Service{config: config, manager: manager}
}

// Init initializes the underlying manager with the given configs and
// file system. Temp projects get a single-source no-output config.
func (s *Service) Init(ctx context.Context, configs *project.ConfigMap, fs fsevents.FileSystem) error {
	return s.manager.Init(ctx, project.InitOptions{
		Configs:            configs,
		FileSystem:         fs,
		DefaultLibLocation: s.config.DefaultLibLocation,
		TempConfig: func(fileName string) any {
			return analysis.Config{Sources: []string{fileName}, NoOutput: true}
		},
	})
}

// UpdateConfigs applies a new ordered configuration set.
func (s *Service) UpdateConfigs(ctx context.Context, configs *project.ConfigMap) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.UpdateTimeout)
	defer cancel()
	return s.manager.UpdateProjectConfigs(ctx, configs)
}

// Resolve answers which project owns fileName.
func (s *Service) Resolve(ctx context.Context, fileName string) (*project.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ResolveTimeout)
	defer cancel()
	return s.manager.ResolveFile(ctx, fileName)
}

// Projects returns the live project names in resolution order.
func (s *Service) Projects() []string {
	return s.manager.Projects()
}

// TempProject reports the current temp project's owner file, if any.
func (s *Service) TempProject() (string, bool) {
	return s.manager.TempProject()
}

// Close disposes the underlying manager. Idempotent.
func (s *Service) Close() {
	s.manager.Dispose()
}
