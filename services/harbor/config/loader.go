// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads Harbor project configuration files.
//
// A configuration file is a YAML list of named project entries. Entry
// order is significant: it becomes the project resolution order, so the
// loader preserves it all the way into the returned ConfigMap.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/harbor/services/harbor/analysis"
	"github.com/AleutianAI/harbor/services/harbor/project"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxYAMLFileSize is the maximum allowed configuration file size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// MaxProjects is the maximum number of project entries per file.
	MaxProjects = 500
)

// =============================================================================
// Types
// =============================================================================

// ProjectsFile is the root structure of a Harbor configuration file.
type ProjectsFile struct {
	Projects []ProjectEntry `yaml:"projects" validate:"required,min=1,dive"`
}

// ProjectEntry is one named project in a configuration file.
type ProjectEntry struct {
	Name   string          `yaml:"name" validate:"required"`
	Config analysis.Config `yaml:"config" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Loading
// =============================================================================

// LoadProjects reads and validates a configuration file.
//
// Description:
//
//	Parses the YAML file at path into an ordered ConfigMap of
//	analysis.Config values, keyed by project name. Duplicate names are
//	rejected so that later entries cannot silently shadow earlier ones.
//
// Inputs:
//
//	path - Configuration file path. Must not be empty.
//
// Outputs:
//
//	*project.ConfigMap - Project configs in file order. Never nil on success.
//	error - Non-nil if the file is unreadable, oversized, or invalid.
func LoadProjects(path string) (*project.ConfigMap, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProjects(data)
}

// ParseProjects parses raw YAML configuration bytes. See LoadProjects.
func ParseProjects(data []byte) (*project.ConfigMap, error) {
	var file ProjectsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(file.Projects) > MaxProjects {
		return nil, fmt.Errorf("too many projects: %d (max %d)", len(file.Projects), MaxProjects)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	configs := project.NewConfigMap()
	for i, entry := range file.Projects {
		if configs.Has(entry.Name) {
			return nil, fmt.Errorf("duplicate project name %q at index %d", entry.Name, i)
		}
		if _, err := analysis.ParseConfig(entry.Config); err != nil {
			return nil, fmt.Errorf("project %q: %w", entry.Name, err)
		}
		configs.Set(entry.Name, entry.Config)
	}

	slog.Debug("project configs parsed", slog.Int("count", configs.Len()))
	return configs, nil
}

// readConfigFile reads path with traversal and size checks.
func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("readConfigFile: path must not be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("readConfigFile: path traversal not allowed: %s", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxYAMLFileSize)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}
