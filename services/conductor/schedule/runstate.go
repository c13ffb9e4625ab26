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
	"sync"
	"time"

	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
	"github.com/AleutianAI/AleutianConductor/services/conductor/task"
)

// State names a run's lifecycle phase.
type State string

const (
	// StatePlanning means the run started and no task has been
	// dispatched yet.
	StatePlanning State = "planning"

	// StateScheduling means tasks are being dispatched and awaited.
	StateScheduling State = "scheduling"

	// StateGoalReached means planning ended and every task is done.
	StateGoalReached State = "goal_reached"

	// StateFailed means a fatal error stopped the run.
	StateFailed State = "failed"

	// StateCancelled means the caller aborted the run.
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether the state ends the run.
func (s State) IsTerminal() bool {
	switch s {
	case StateGoalReached, StateFailed, StateCancelled:
		return true
	}
	return false
}

// RunState is the single shared mutable structure of a run.
//
// Description:
//
//	Holds the authoritative graph (replaced wholesale by ingester
//	snapshots), the per-node results, the scheduled set, and the fatal
//	error slot. The error slot is first-write-wins: the first fatal
//	cause is the reported one, later fatals are dropped by SetFatal.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Accessors return copies
//	or immutable values, never interior references.
type RunState struct {
	mu        sync.RWMutex
	graph     *graph.Graph
	results   map[string]task.Result
	scheduled map[string]bool
	fatal     error
	planDone  bool
}

// NewRunState creates run state seeded with a root-only graph.
func NewRunState(g *graph.Graph) *RunState {
	return &RunState{
		graph:     g,
		results:   make(map[string]task.Result),
		scheduled: make(map[string]bool),
	}
}

// Graph returns the current graph snapshot.
func (rs *RunState) Graph() *graph.Graph {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.graph
}

// SetGraph replaces the graph with a newer ingester snapshot.
func (rs *RunState) SetGraph(g *graph.Graph) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.graph = g
}

// MarkScheduled records that a node was handed to a runner.
//
// Outputs:
//
//	bool - False if the node was already scheduled; the caller must
//	       not dispatch it again.
func (rs *RunState) MarkScheduled(id string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.scheduled[id] {
		return false
	}
	rs.scheduled[id] = true
	return true
}

// ApplyPacket folds a progress packet into the node's result.
func (rs *RunState) ApplyPacket(nodeID string, p task.Packet) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.results[nodeID]
	if !ok {
		r = task.NewResult(nodeID)
	}
	rs.results[nodeID] = r.Apply(p)
}

// Result returns the node's result and whether one exists.
func (rs *RunState) Result(nodeID string) (task.Result, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.results[nodeID]
	return r, ok
}

// Results returns a copy of the result map.
func (rs *RunState) Results() map[string]task.Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make(map[string]task.Result, len(rs.results))
	for id, r := range rs.results {
		out[id] = r
	}
	return out
}

// Completed returns the set of node ids whose result reached done.
func (rs *RunState) Completed() map[string]bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make(map[string]bool, len(rs.results))
	for id, r := range rs.results {
		if r.Status == task.StatusDone {
			out[id] = true
		}
	}
	return out
}

// Scheduled returns a copy of the scheduled set.
func (rs *RunState) Scheduled() map[string]bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make(map[string]bool, len(rs.scheduled))
	for id := range rs.scheduled {
		out[id] = true
	}
	return out
}

// InFlight counts scheduled nodes that have not reached a terminal
// result.
func (rs *RunState) InFlight() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	n := 0
	for id := range rs.scheduled {
		if r, ok := rs.results[id]; !ok || !r.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// SetFatal records the run's fatal cause.
//
// Outputs:
//
//	bool - True if this call won the slot; false if a cause was
//	       already recorded.
func (rs *RunState) SetFatal(err error) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.fatal != nil {
		return false
	}
	rs.fatal = err
	return true
}

// Fatal returns the recorded fatal cause, nil if none.
func (rs *RunState) Fatal() error {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.fatal
}

// SetPlanDone marks the planner stream as ended.
func (rs *RunState) SetPlanDone() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.planDone = true
}

// PlanDone reports whether the planner stream has ended.
func (rs *RunState) PlanDone() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.planDone
}

// Snapshot is an immutable view of a run handed to observers.
type Snapshot struct {
	// RunID is the run's identifier.
	RunID string `json:"run_id"`

	// Goal is the run's natural-language goal.
	Goal string `json:"goal"`

	// State is the run's lifecycle phase at snapshot time.
	State State `json:"state"`

	// Graph is the graph snapshot; immutable.
	Graph *graph.Graph `json:"graph"`

	// Results maps node id to its result at snapshot time.
	Results map[string]task.Result `json:"results"`

	// PlanDone reports whether planning has finished.
	PlanDone bool `json:"plan_done"`

	// Error describes the fatal cause for failed runs.
	Error string `json:"error,omitempty"`

	// CriticalPath is the longest dependency chain, in edges.
	CriticalPath int `json:"critical_path"`

	// SpeedupFactor is task count over critical path, two decimals.
	SpeedupFactor float64 `json:"speedup_factor"`

	// TakenAt is when the snapshot was captured.
	TakenAt time.Time `json:"taken_at"`
}
