// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schedule

import (
	"context"
	"sync"
)

// Registry tracks a process's runs by id.
//
// Description:
//
//	The run control surface for callers that manage multiple runs: the
//	HTTP server starts runs through a Registry so it can look them up,
//	cancel them, and reset the process to a clean slate.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	scheduler *Scheduler

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates a registry backed by the given scheduler.
func NewRegistry(scheduler *Scheduler) *Registry {
	return &Registry{
		scheduler: scheduler,
		runs:      make(map[string]*Run),
	}
}

// Start begins a run and registers it.
func (reg *Registry) Start(ctx context.Context, goal string) (*Run, error) {
	r, err := reg.scheduler.Start(ctx, goal)
	if err != nil {
		return nil, err
	}
	reg.mu.Lock()
	reg.runs[r.ID()] = r
	reg.mu.Unlock()
	return r, nil
}

// Get returns the run with the given id.
//
// Outputs:
//
//	*Run - The run handle.
//	error - ErrRunNotFound when no such run exists.
func (reg *Registry) Get(id string) (*Run, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// List returns all registered runs in unspecified order.
func (reg *Registry) List() []*Run {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Run, 0, len(reg.runs))
	for _, r := range reg.runs {
		out = append(out, r)
	}
	return out
}

// Cancel aborts the run with the given id.
func (reg *Registry) Cancel(id string) error {
	r, err := reg.Get(id)
	if err != nil {
		return err
	}
	r.Cancel()
	return nil
}

// Reset cancels every run and clears the registry.
//
// Outputs:
//
//	int - The number of runs that were registered.
func (reg *Registry) Reset() int {
	reg.mu.Lock()
	runs := reg.runs
	reg.runs = make(map[string]*Run)
	reg.mu.Unlock()

	for _, r := range runs {
		r.Cancel()
	}
	return len(runs)
}
