// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schedule runs a plan graph to completion.
//
// Description:
//
//	The Scheduler owns a run's lifecycle: it starts the planner stream,
//	feeds its snapshots into the run state through the plan ingester,
//	and polls readiness at a fixed interval, dispatching every ready
//	task concurrently as one layer. Task completions feed back into the
//	completed set asynchronously, so the next layer unblocks
//	incrementally rather than as a batch.
//
//	A run terminates in exactly one of three states: GoalReached when
//	planning ended and every task is done, Failed on a fatal task or
//	planning error (first write wins), or Cancelled when the caller
//	aborts. A stalled run fails with ErrAwaitingHuman when tasks paused
//	for human input, or ErrDeadlock when the planner produced an
//	unreachable subgraph. Any terminal state cancels all in-flight work.
//
// Thread Safety:
//
//	Scheduler and Run are safe for concurrent use. RunState is
//	internally synchronized; callers only ever observe immutable
//	snapshots.
package schedule
