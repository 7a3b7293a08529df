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

import "errors"

// Sentinel errors for manager operations.
var (
	// ErrManagerDisposed indicates an operation on a disposed manager.
	ErrManagerDisposed = errors.New("project manager disposed")

	// ErrManagerNotInitialized indicates an operation before Init.
	ErrManagerNotInitialized = errors.New("project manager not initialized")

	// ErrProjectDisposed indicates Init or Update on a disposed instance.
	ErrProjectDisposed = errors.New("project instance disposed")

	// ErrDuplicateProject indicates a create for a name that already has a
	// live instance. This is a programming-contract violation: it cannot
	// happen while config updates are serialized.
	ErrDuplicateProject = errors.New("duplicate project instance")

	// ErrNoFileSystem indicates Init was called without a file system handle.
	ErrNoFileSystem = errors.New("no file system handle")

	// ErrNoFactory indicates the manager was built without an instance factory.
	ErrNoFactory = errors.New("no project factory")
)
