// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides event types and broadcasting for run execution.
//
// Events let external systems observe planning and task execution as it
// happens, without coupling to the scheduler implementation. The server
// package subscribes to stream events to clients; tests subscribe to
// assert ordering properties.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import (
	"github.com/AleutianAI/AleutianConductor/services/conductor/task"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeRunStarted is emitted when a run begins, before planning.
	TypeRunStarted Type = "run_started"

	// TypePlanSnapshot is emitted each time the plan graph grows.
	TypePlanSnapshot Type = "plan_snapshot"

	// TypePlanFinished is emitted when the planner stream ends.
	TypePlanFinished Type = "plan_finished"

	// TypeNodeScheduled is emitted when a task is handed to a worker.
	TypeNodeScheduled Type = "node_scheduled"

	// TypeNodePacket is emitted for every task progress packet.
	TypeNodePacket Type = "node_packet"

	// TypeRunFinished is emitted exactly once, when the run reaches a
	// terminal state.
	TypeRunFinished Type = "run_finished"
)

// Event represents a run observation.
//
// Description:
//
//	Each event has a type that determines the structure of its Data
//	field. Use the matching typed data struct when setting Data.
//
// Thread Safety:
//
//	Event structs should be treated as immutable after creation.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// RunID links the event to a run.
	RunID string `json:"run_id"`

	// NodeID is set for node-scoped events, empty for run-scoped ones.
	NodeID string `json:"node_id,omitempty"`

	// Timestamp is when the event occurred (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`

	// Sequence is the event's position in the run's event order.
	Sequence int `json:"sequence"`

	// Data contains event-specific data: RunStartedData,
	// PlanSnapshotData, PlanFinishedData, NodeScheduledData,
	// NodePacketData, or RunFinishedData.
	Data any `json:"data,omitempty"`
}

// RunStartedData is the data for run_started events.
type RunStartedData struct {
	// Goal is the user goal the run is pursuing.
	Goal string `json:"goal"`
}

// PlanSnapshotData is the data for plan_snapshot events.
type PlanSnapshotData struct {
	// NodeCount is the snapshot's node count, root included.
	NodeCount int `json:"node_count"`

	// EdgeCount is the snapshot's edge count.
	EdgeCount int `json:"edge_count"`
}

// PlanFinishedData is the data for plan_finished events.
type PlanFinishedData struct {
	// TaskCount is the number of planned tasks, root excluded.
	TaskCount int `json:"task_count"`
}

// NodeScheduledData is the data for node_scheduled events.
type NodeScheduledData struct {
	// Name is the scheduled task's display name.
	Name string `json:"name"`
}

// NodePacketData is the data for node_packet events.
type NodePacketData struct {
	// Packet is the progress packet the task emitted.
	Packet task.Packet `json:"packet"`
}

// RunFinishedData is the data for run_finished events.
type RunFinishedData struct {
	// State is the run's terminal state name.
	State string `json:"state"`

	// SpeedupFactor is the run's parallelism score.
	SpeedupFactor float64 `json:"speedup_factor"`

	// Error describes the failure for failed runs.
	Error string `json:"error,omitempty"`
}
