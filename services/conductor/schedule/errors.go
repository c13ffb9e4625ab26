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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPlan indicates the planner stream ended without producing a
	// single task.
	ErrNoPlan = errors.New("no plan found")

	// ErrDeadlock indicates pending tasks remain with nothing ready,
	// nothing in flight, and planning finished. The planner produced an
	// unreachable subgraph.
	ErrDeadlock = errors.New("plan deadlocked")

	// ErrAwaitingHuman indicates progress stopped because one or more
	// tasks resolved waitingOnHuman and their dependents cannot proceed
	// without that input.
	ErrAwaitingHuman = errors.New("run awaiting human input")

	// ErrRunCancelled indicates the run was cancelled by the caller.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunNotFound indicates the registry holds no run with the
	// requested id.
	ErrRunNotFound = errors.New("run not found")
)

// TaskFailureError reports the fatal task that aborted a run.
type TaskFailureError struct {
	// NodeID is the failed task.
	NodeID string

	// Detail is the failure description from the execution collaborator.
	Detail string
}

// Error implements the error interface.
func (e *TaskFailureError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.NodeID, e.Detail)
}

// PlanFailureError reports a terminal planner stream failure.
type PlanFailureError struct {
	// Cause is the underlying stream error.
	Cause error
}

// Error implements the error interface.
func (e *PlanFailureError) Error() string {
	return fmt.Sprintf("planning failed: %v", e.Cause)
}

// Unwrap returns the underlying stream error.
func (e *PlanFailureError) Unwrap() error {
	return e.Cause
}

// AwaitingHumanError reports the tasks that paused for human input and
// stopped the run. Distinct from DeadlockError: the plan was sound, the
// collaborator asked for input the engine cannot supply.
type AwaitingHumanError struct {
	// Waiting are the ids of tasks that resolved waitingOnHuman.
	Waiting []string
}

// Error implements the error interface.
func (e *AwaitingHumanError) Error() string {
	return fmt.Sprintf("tasks [%s] are waiting on human input", strings.Join(e.Waiting, ", "))
}

// Unwrap allows errors.Is(err, ErrAwaitingHuman).
func (e *AwaitingHumanError) Unwrap() error {
	return ErrAwaitingHuman
}

// DeadlockError carries the tasks left unreachable when a run deadlocks.
type DeadlockError struct {
	// Pending are the ids of tasks that can never become ready.
	Pending []string
}

// Error implements the error interface.
func (e *DeadlockError) Error() string {
	return fmt.Sprintf("plan deadlocked: tasks [%s] can never run", strings.Join(e.Pending, ", "))
}

// Unwrap allows errors.Is(err, ErrDeadlock).
func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}
