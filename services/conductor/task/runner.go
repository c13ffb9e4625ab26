// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package task

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
)

// Sentinel errors for the task package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrRootNotRunnable is returned when the root sentinel is passed to
	// a runner. The root represents the goal and is never executed.
	ErrRootNotRunnable = errors.New("root node is not runnable")
)

// OutcomeKind discriminates the terminal outcome union.
type OutcomeKind string

const (
	// OutcomeDone means the task finished with a result value.
	OutcomeDone OutcomeKind = "done"

	// OutcomeError means the task failed with the recorded severity.
	OutcomeError OutcomeKind = "error"

	// OutcomeHuman means the task needs human input to proceed.
	OutcomeHuman OutcomeKind = "waitingOnHuman"
)

// Outcome is the single terminal value of one task execution.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Value    string      `json:"value,omitempty"`
	Severity Severity    `json:"severity,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// Done builds a success outcome.
func Done(value string) Outcome {
	return Outcome{Kind: OutcomeDone, Value: value}
}

// Failed builds an error outcome with the given severity.
func Failed(severity Severity, detail string) Outcome {
	return Outcome{Kind: OutcomeError, Severity: severity, Detail: detail}
}

// WaitingOnHuman builds a needs-human-input outcome.
func WaitingOnHuman(reason string) Outcome {
	return Outcome{Kind: OutcomeHuman, Reason: reason}
}

// IsFatal reports whether the outcome must stop the whole run.
func (o Outcome) IsFatal() bool {
	return o.Kind == OutcomeError && o.Severity == SeverityFatal
}

// Packet converts the outcome into its terminal packet.
func (o Outcome) Packet() Packet {
	switch o.Kind {
	case OutcomeDone:
		return Packet{Kind: PacketDone, Value: o.Value}
	case OutcomeHuman:
		return Packet{Kind: PacketHuman, Reason: o.Reason}
	default:
		return Packet{Kind: PacketError, Severity: o.Severity, Detail: o.Detail}
	}
}

// Sink receives progress packets while a task executes.
//
// The scheduler injects a sink that updates the node's Result and fans the
// packet out to observers. Sinks must be safe for concurrent use; the
// packets of different nodes arrive from different goroutines.
type Sink func(nodeID string, p Packet)

// Runner invokes the execution collaborator for a single node.
//
// # Description
//
// A Runner turns one node plus the context of already-finished work into
// exactly one terminal Outcome, emitting zero or more progress packets to
// the sink along the way. The terminal packet is appended by the caller
// from the returned Outcome, not by the runner.
//
// # Contract
//
//   - Must observe ctx: once cancelled, abort in-flight work promptly and
//     return an error rather than hanging.
//   - Never retries internally. Retry policy belongs to the caller.
//   - prior maps completed non-root node ids to their result values, so
//     the collaborator can avoid redundant work.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the scheduler runs many
// nodes at once against the same Runner.
type Runner interface {
	Run(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit Sink) (Outcome, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit Sink) (Outcome, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit Sink) (Outcome, error) {
	return f(ctx, node, g, prior, emit)
}
