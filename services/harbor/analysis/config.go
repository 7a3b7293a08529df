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
	"errors"
	"fmt"
)

// Config describes one analysis project: which files it owns and how.
type Config struct {
	// Sources are glob patterns (or literal paths) selecting the
	// project's own files. Required.
	Sources []string `yaml:"sources" json:"sources" validate:"required,min=1"`

	// Excludes are glob patterns removed from the source selection.
	Excludes []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`

	// NoOutput disables emit for this project. Temp projects always set it.
	NoOutput bool `yaml:"noOutput,omitempty" json:"noOutput,omitempty"`
}

// ErrInvalidConfig indicates a configuration value this package cannot use.
var ErrInvalidConfig = errors.New("invalid analysis config")

// ParseConfig coerces an opaque manager-level configuration into a Config.
//
// Accepted shapes: Config, *Config, and the generic map produced by the
// manager's default temp-config builder ({"sources": [...], "noOutput": bool}).
func ParseConfig(v any) (Config, error) {
	switch c := v.(type) {
	case Config:
		return c, validate(c)
	case *Config:
		if c == nil {
			return Config{}, fmt.Errorf("%w: nil config", ErrInvalidConfig)
		}
		return *c, validate(*c)
	case map[string]any:
		return parseGeneric(c)
	default:
		return Config{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidConfig, v)
	}
}

func validate(c Config) error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrInvalidConfig)
	}
	return nil
}

func parseGeneric(m map[string]any) (Config, error) {
	var cfg Config

	switch sources := m["sources"].(type) {
	case []string:
		cfg.Sources = sources
	case []any:
		for _, s := range sources {
			str, ok := s.(string)
			if !ok {
				return Config{}, fmt.Errorf("%w: non-string source %v", ErrInvalidConfig, s)
			}
			cfg.Sources = append(cfg.Sources, str)
		}
	case nil:
		// handled by validate below
	default:
		return Config{}, fmt.Errorf("%w: bad sources type %T", ErrInvalidConfig, sources)
	}

	switch excludes := m["excludes"].(type) {
	case []string:
		cfg.Excludes = excludes
	case []any:
		for _, s := range excludes {
			if str, ok := s.(string); ok {
				cfg.Excludes = append(cfg.Excludes, str)
			}
		}
	}

	if noOutput, ok := m["noOutput"].(bool); ok {
		cfg.NoOutput = noOutput
	}

	return cfg, validate(cfg)
}
