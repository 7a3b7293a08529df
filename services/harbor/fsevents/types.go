// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fsevents

import "errors"

// ChangeKind classifies a single file-system change record.
type ChangeKind int

const (
	// ChangeAdd indicates a file appeared.
	ChangeAdd ChangeKind = iota

	// ChangeUpdate indicates a file's content was modified.
	ChangeUpdate

	// ChangeDelete indicates a file was removed.
	ChangeDelete

	// ChangeReset indicates incremental state is unknown and consumers
	// must rebuild their view of the file set from scratch.
	ChangeReset
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ChangeRecord describes one file-system mutation.
//
// FileName is empty only for ChangeReset records.
type ChangeRecord struct {
	Kind     ChangeKind
	FileName string
}

// Handler receives change batches. Records within a batch are ordered;
// batches are delivered in the order the changes occurred.
type Handler func(batch []ChangeRecord)

// FileSystem is the change event source consumed by the project manager.
//
// Implementations must deliver change batches to subscribers synchronously
// and in subscription order, and must not reorder records across batches.
type FileSystem interface {
	// ProjectFiles returns the paths of all files currently known to the
	// source. When forceRefresh is true the source must rescan rather than
	// serve a cached listing.
	ProjectFiles(forceRefresh bool) ([]string, error)

	// ReadFile returns the content of the file at path. Unknown paths fail
	// with an error wrapping ErrFileNotFound.
	ReadFile(path string) (string, error)

	// Subscribe registers a handler for change batches and returns a
	// subscription ID for Unsubscribe.
	Subscribe(handler Handler) string

	// Unsubscribe removes a previously registered handler. Unknown IDs are
	// ignored.
	Unsubscribe(id string)
}

// Sentinel errors for file-system operations.
var (
	// ErrFileNotFound indicates the requested path is not known to the source.
	ErrFileNotFound = errors.New("file not found")

	// ErrWatcherClosed indicates an operation on a stopped watcher.
	ErrWatcherClosed = errors.New("watcher closed")
)
