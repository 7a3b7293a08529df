// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package project is Harbor's project registry and file-ownership resolver.
//
// Given a live, mutable set of named project configurations and a
// file-system that reports change batches, the Manager maintains one
// analysis-project instance per configuration, keeps each instance
// synchronized with file-system changes, and answers which instance owns a
// given file — creating an ephemeral single-file fallback project on demand
// when no configured project claims it.
//
// Resolution is two-tier and order-sensitive: a SOURCE claim outranks a
// REFERENCE claim, and within a tier the first project in configuration
// insertion order wins. The fallback project is cached and invalidated by
// incoming change batches, never polled for.
//
// Instances themselves are opaque collaborators built through a Factory;
// this package never looks inside a configuration value.
package project
