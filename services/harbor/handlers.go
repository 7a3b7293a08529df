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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/harbor/services/harbor/analysis"
	"github.com/AleutianAI/harbor/services/harbor/fsevents"
	"github.com/AleutianAI/harbor/services/harbor/project"
)

// Handlers contains the HTTP handlers for Harbor.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/harbor/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      ServiceVersion,
		ProjectCount: len(h.svc.Projects()),
	})
}

// HandleProjects handles GET /v1/harbor/projects.
//
// Response:
//
//	200 OK: ProjectsResponse
func (h *Handlers) HandleProjects(c *gin.Context) {
	resp := ProjectsResponse{Projects: h.svc.Projects()}
	if owner, ok := h.svc.TempProject(); ok {
		resp.TempProject = owner
	}
	c.JSON(http.StatusOK, resp)
}

// HandleUpdateConfigs handles POST /v1/harbor/configs.
//
// Description:
//
//	Replaces the full project configuration set. Entry order becomes the
//	new resolution order. Removed projects are disposed before the call
//	returns; added and retained projects are brought up concurrently.
//
// Request Body:
//
//	ConfigsRequest
//
// Response:
//
//	200 OK: ConfigsResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: One or more projects failed to initialize
//	503 Service Unavailable: Service disposed or not initialized
func (h *Handlers) HandleUpdateConfigs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpdateConfigs")

	var req ConfigsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	configs := project.NewConfigMap()
	for _, entry := range req.Projects {
		if configs.Has(entry.Name) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "duplicate project name: " + entry.Name,
				Code:  "DUPLICATE_PROJECT",
			})
			return
		}
		configs.Set(entry.Name, entry.Config)
	}

	logger.Info("Updating project configs", "count", configs.Len())

	if err := h.svc.UpdateConfigs(c.Request.Context(), configs); err != nil {
		status, code := updateErrorStatus(err)
		logger.Error("Config update failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, ConfigsResponse{Projects: h.svc.Projects()})
}

// HandleResolve handles GET /v1/harbor/resolve.
//
// Query Parameters:
//
//	file: The file path to resolve. Required.
//
// Response:
//
//	200 OK: ResolveResponse
//	400 Bad Request: Missing file parameter
//	404 Not Found: File does not exist and no project claims it
//	503 Service Unavailable: Service disposed or not initialized
func (h *Handlers) HandleResolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleResolve")

	fileName := c.Query("file")
	if fileName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file query parameter is required",
			Code:  "MISSING_FILE",
		})
		return
	}

	res, err := h.svc.Resolve(c.Request.Context(), fileName)
	if err != nil {
		status, code := resolveErrorStatus(err)
		logger.Warn("Resolve failed", "file", fileName, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, ResolveResponse{
		File:    fileName,
		Project: res.ProjectName,
		Kind:    res.Kind.String(),
		Temp:    res.Temp,
	})
}

// updateErrorStatus maps a config update error to HTTP status and code.
func updateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, project.ErrManagerDisposed),
		errors.Is(err, project.ErrManagerNotInitialized):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	case errors.Is(err, analysis.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	default:
		return http.StatusInternalServerError, "UPDATE_FAILED"
	}
}

// resolveErrorStatus maps a resolve error to HTTP status and code.
func resolveErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, project.ErrManagerDisposed),
		errors.Is(err, project.ErrManagerNotInitialized):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	case errors.Is(err, fsevents.ErrFileNotFound):
		return http.StatusNotFound, "FILE_NOT_FOUND"
	default:
		return http.StatusInternalServerError, "RESOLVE_FAILED"
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
