// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "math"

// CriticalPathLength returns the longest path from the root to any node,
// measured in edge count.
//
// Description:
//
//	Memoized depth-first walk over the outgoing adjacency starting at
//	the root. Edge insertion order carries no meaning here: the ingester
//	appends synthesized root edges after the authored ones, and authored
//	edge order is whatever the planner emitted. A back edge (the graph
//	does not reject cycles) contributes no length instead of recursing.
//	Used for the end-of-run report only, never for scheduling.
//
// Outputs:
//
//	int - Longest root-to-node distance in edges. Zero for a root-only graph.
func (g *Graph) CriticalPathLength() int {
	out := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		out[e.SourceID] = append(out[e.SourceID], e.TargetID)
	}

	memo := make(map[string]int, len(g.nodes))
	onPath := make(map[string]bool, len(g.nodes))

	var longestFrom func(id string) int
	longestFrom = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		onPath[id] = true
		best := 0
		for _, next := range out[id] {
			if onPath[next] {
				continue
			}
			if d := longestFrom(next) + 1; d > best {
				best = d
			}
		}
		onPath[id] = false
		memo[id] = best
		return best
	}

	return longestFrom(RootID)
}

// SpeedupFactor estimates how much concurrency the plan exploited versus
// fully sequential execution.
//
// Description:
//
//	The ratio of task count (the root sentinel is not a task) to
//	critical-path length, rounded to two decimal places. A chain of N
//	tasks scores 1.0; N independent tasks score N. Reported in the run
//	summary.
//
// Outputs:
//
//	float64 - Rounded speedup estimate. Zero for a root-only graph.
func (g *Graph) SpeedupFactor() float64 {
	cp := g.CriticalPathLength()
	if cp == 0 {
		return 0
	}
	tasks := g.NodeCount() - 1
	return math.Round(float64(tasks)/float64(cp)*100) / 100
}
