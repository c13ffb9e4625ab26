// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task defines per-node execution state and the contract with the
// execution collaborator.
//
// A Result is the observable state of one node: its lifecycle status, the
// terminal value or error once finished, and the ordered log of packets
// received while the node executed. Results are values: applying a packet
// returns a new Result carrying the prior packets forward, so observers
// holding an old Result never see it change underneath them.
package task

import (
	"time"
)

// Status is the lifecycle state of a node's execution.
type Status string

const (
	// StatusIdle means the node has not been dispatched.
	StatusIdle Status = "idle"

	// StatusStarting means the runner was invoked but has not reported
	// progress yet.
	StatusStarting Status = "starting"

	// StatusWorking means the runner has emitted at least one progress
	// packet.
	StatusWorking Status = "working"

	// StatusDone is the terminal success state.
	StatusDone Status = "done"

	// StatusWaitingOnHuman means the runner needs human input to proceed.
	StatusWaitingOnHuman Status = "waitingOnHuman"

	// StatusError is the terminal failure state.
	StatusError Status = "error"
)

// IsTerminal reports whether the status ends the node's execution.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError || s == StatusWaitingOnHuman
}

// Severity classifies a task error.
type Severity string

const (
	// SeverityWarn records the failure on the node but lets the run
	// continue.
	SeverityWarn Severity = "warn"

	// SeverityFatal stops the whole run.
	SeverityFatal Severity = "fatal"
)

// PacketKind discriminates the Packet union.
//
// The set is closed: the scheduler and every sink switch exhaustively
// over these kinds.
type PacketKind string

const (
	// PacketStarting is emitted once when the runner begins.
	PacketStarting PacketKind = "starting"

	// PacketToken carries a streamed output fragment.
	PacketToken PacketKind = "token"

	// PacketStatus carries a human-readable progress message.
	PacketStatus PacketKind = "status"

	// PacketDone is the terminal success packet.
	PacketDone PacketKind = "done"

	// PacketHuman is the terminal needs-human-input packet.
	PacketHuman PacketKind = "waitingOnHuman"

	// PacketError is the terminal failure packet.
	PacketError PacketKind = "error"
)

// Packet is one progress or terminal event from a task execution.
//
// Only the fields for the packet's Kind are set:
//
//	PacketToken  - Token
//	PacketStatus - Message
//	PacketDone   - Value
//	PacketHuman  - Reason
//	PacketError  - Severity, Detail
type Packet struct {
	Kind     PacketKind `json:"kind"`
	At       time.Time  `json:"at"`
	Token    string     `json:"token,omitempty"`
	Message  string     `json:"message,omitempty"`
	Value    string     `json:"value,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Severity Severity   `json:"severity,omitempty"`
	Detail   string     `json:"detail,omitempty"`
}

// IsTerminal reports whether the packet ends the task.
func (p Packet) IsTerminal() bool {
	return p.Kind == PacketDone || p.Kind == PacketError || p.Kind == PacketHuman
}

// Result is the observable execution state of one node.
//
// Thread Safety:
//
//	Result is an immutable value. Apply returns a new Result; the packet
//	log is shared structurally but never mutated in place by this package.
type Result struct {
	// NodeID is the node this result belongs to.
	NodeID string `json:"nodeId"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Value is the terminal result payload when Status is done.
	Value string `json:"value,omitempty"`

	// Severity and Detail describe the failure when Status is error.
	Severity Severity `json:"severity,omitempty"`
	Detail   string   `json:"detail,omitempty"`

	// Reason explains a waitingOnHuman status.
	Reason string `json:"reason,omitempty"`

	// UpdatedAt is when the last packet was applied.
	UpdatedAt time.Time `json:"updatedAt"`

	// Packets is the ordered event log for this node.
	Packets []Packet `json:"packets"`
}

// NewResult creates the initial idle result for a node.
func NewResult(nodeID string) Result {
	return Result{NodeID: nodeID, Status: StatusIdle, UpdatedAt: time.Now()}
}

// Apply folds a packet into the result, returning the replacement.
//
// Description:
//
//	The returned Result carries all prior packets plus the new one; the
//	receiver is unchanged. Status is derived from the packet kind: the
//	first progress packet moves idle/starting to working, and terminal
//	packets set the matching terminal status together with the payload
//	fields.
func (r Result) Apply(p Packet) Result {
	if p.At.IsZero() {
		p.At = time.Now()
	}

	next := r
	next.UpdatedAt = p.At
	next.Packets = append(append([]Packet(nil), r.Packets...), p)

	switch p.Kind {
	case PacketStarting:
		next.Status = StatusStarting
	case PacketToken, PacketStatus:
		next.Status = StatusWorking
	case PacketDone:
		next.Status = StatusDone
		next.Value = p.Value
	case PacketHuman:
		next.Status = StatusWaitingOnHuman
		next.Reason = p.Reason
	case PacketError:
		next.Status = StatusError
		next.Severity = p.Severity
		next.Detail = p.Detail
	}
	return next
}
