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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	projectsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harbor_projects_created_total",
		Help: "Total project instances created, by kind (configured|temp)",
	}, []string{"kind"})

	projectsDisposed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harbor_projects_disposed_total",
		Help: "Total project instances disposed, by kind (configured|temp)",
	}, []string{"kind"})

	projectUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harbor_project_updates_total",
		Help: "Total configuration pushes to retained project instances",
	})

	configUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harbor_config_update_duration_seconds",
		Help:    "Duration of UpdateProjectConfigs calls",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harbor_resolve_duration_seconds",
		Help:    "Duration of file ownership resolution",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
	})

	tempCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harbor_temp_cache_hits_total",
		Help: "Resolutions served by the cached temp project",
	})

	tempCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harbor_temp_cache_misses_total",
		Help: "Resolutions that had to create a new temp project",
	})

	tempInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harbor_temp_invalidations_total",
		Help: "Temp project cache invalidations, by reason (reset|change)",
	}, []string{"reason"})

	changeBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harbor_change_batch_size",
		Help:    "Records per forwarded change batch",
		Buckets: []float64{1, 2, 5, 10, 50, 100, 500},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var tracer = otel.Tracer("harbor.project")
