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

import (
	"sync"

	"github.com/google/uuid"
)

// Emitter is an explicit observer registry for change batches.
//
// Handlers are invoked synchronously, in subscription order, on the
// goroutine that calls Emit. Implementations embedding an Emitter get the
// Subscribe/Unsubscribe half of the FileSystem contract for free.
//
// Thread Safety: Emitter is safe for concurrent use.
type Emitter struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string]Handler)}
}

// Subscribe registers a handler and returns its subscription ID.
func (e *Emitter) Subscribe(handler Handler) string {
	id := uuid.NewString()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[id] = handler
	e.order = append(e.order, id)
	return id
}

// Unsubscribe removes the handler with the given ID. Unknown IDs are ignored.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.handlers[id]; !ok {
		return
	}
	delete(e.handlers, id)
	for i, other := range e.order {
		if other == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Clear removes every subscription.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string]Handler)
	e.order = nil
}

// SubscriberCount returns the number of live subscriptions.
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// Emit delivers one batch to every subscriber in subscription order.
//
// The handler list is snapshotted before dispatch, so a handler that
// unsubscribes itself (or others) during delivery does not mutate the
// in-flight iteration.
func (e *Emitter) Emit(batch []ChangeRecord) {
	if len(batch) == 0 {
		return
	}

	e.mu.RLock()
	snapshot := make([]Handler, 0, len(e.order))
	for _, id := range e.order {
		if h, ok := e.handlers[id]; ok {
			snapshot = append(snapshot, h)
		}
	}
	e.mu.RUnlock()

	for _, h := range snapshot {
		h(batch)
	}
}
