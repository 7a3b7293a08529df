// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fsevents is Harbor's change event source.
//
// It defines the ChangeRecord wire model and the FileSystem contract the
// project manager consumes, plus two implementations: Watcher (fsnotify,
// debounced batches) for real directory trees and MemFS (scriptable,
// synchronous) for tests and embedding.
//
// Delivery guarantees: records within a batch are ordered, batches are
// delivered in occurrence order, and handlers run synchronously in
// subscription order. A watcher that loses events (buffer overflow,
// fsnotify error) emits a ChangeReset record instead of guessing.
package fsevents
