// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harbor

import (
	"github.com/AleutianAI/harbor/services/harbor/analysis"
)

// ConfigsRequest is the body of POST /v1/harbor/configs.
//
// Entry order is significant: it is the new project resolution order.
type ConfigsRequest struct {
	Projects []ConfigEntry `json:"projects" binding:"required,min=1,dive"`
}

// ConfigEntry names one project and its analysis configuration.
type ConfigEntry struct {
	Name   string          `json:"name" binding:"required"`
	Config analysis.Config `json:"config" binding:"required"`
}

// ConfigsResponse reports the state after a configuration update.
type ConfigsResponse struct {
	// Projects is the live project list in resolution order.
	Projects []string `json:"projects"`
}

// ProjectsResponse is the body of GET /v1/harbor/projects.
type ProjectsResponse struct {
	// Projects is the live project list in resolution order.
	Projects []string `json:"projects"`

	// TempProject is the owner file of the current temp project, if any.
	TempProject string `json:"temp_project,omitempty"`
}

// ResolveResponse is the body of GET /v1/harbor/resolve.
type ResolveResponse struct {
	// File is the requested file path.
	File string `json:"file"`

	// Project is the owning project name (temp projects use "temp:<file>").
	Project string `json:"project"`

	// Kind is "source" or "reference".
	Kind string `json:"kind"`

	// Temp is true when the file is served by an inferred temp project.
	Temp bool `json:"temp"`
}

// HealthResponse is the body of GET /v1/harbor/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ProjectCount int    `json:"project_count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
