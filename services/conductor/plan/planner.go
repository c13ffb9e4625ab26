// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan turns a streaming planner response into a monotonically
// growing task graph.
//
// The planning collaborator emits raw text chunks that, concatenated,
// parse into a plan document of nodes and edges. The Ingester re-parses
// the accumulated buffer after every chunk with a truncation-tolerant
// parser, so a valid partial graph is available long before the stream
// ends. Published snapshots only ever grow; observers never see the graph
// shrink mid-run.
package plan

import "context"

// Chunk is one fragment of the planner's streaming response.
//
// A terminal stream failure arrives as a Chunk with Err set; the channel
// closing without an Err chunk means planning finished cleanly.
type Chunk struct {
	Text string
	Err  error
}

// Planner is the planning collaborator boundary.
//
// Implementations must honor ctx: once cancelled, the returned channel
// must close promptly (after at most one Err chunk).
type Planner interface {
	// Plan starts planning for a goal and returns the chunk stream.
	Plan(ctx context.Context, goal string) (<-chan Chunk, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, goal string) (<-chan Chunk, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, goal string) (<-chan Chunk, error) {
	return f(ctx, goal)
}
