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
	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
)

// Ready computes the tasks eligible for dispatch.
//
// Description:
//
//	A non-root node is ready when it is neither completed nor already
//	scheduled and every one of its dependencies is the root or is
//	completed. While planning is still streaming, a node is held back
//	unless a later node already exists in the graph: the streaming
//	planner appends nodes in order, so a successor's presence proves
//	this node's context is fully authored and will not grow under a
//	running task.
//
// Inputs:
//
//	g - The current graph snapshot.
//	completed - Node ids whose result reached done.
//	scheduled - Node ids already handed to a runner.
//	planDone - True once the planner stream has ended.
//
// Outputs:
//
//	[]graph.Node - Ready tasks in graph insertion order; nil when none.
//
// Thread Safety:
//
//	Pure function over its inputs.
func Ready(g *graph.Graph, completed, scheduled map[string]bool, planDone bool) []graph.Node {
	var ready []graph.Node

	nodes := g.Nodes()
	for idx, n := range nodes {
		if n.IsRoot() {
			continue
		}
		if completed[n.ID] || scheduled[n.ID] {
			continue
		}
		if !planDone && idx == len(nodes)-1 {
			// Last known node mid-stream; its context may still be
			// arriving.
			continue
		}
		if depsSatisfied(g, n.ID, completed) {
			ready = append(ready, n)
		}
	}
	return ready
}

// depsSatisfied reports whether every dependency of the node is the
// root or completed.
func depsSatisfied(g *graph.Graph, id string, completed map[string]bool) bool {
	for _, e := range g.Incoming(id) {
		if e.SourceID == graph.RootID {
			continue
		}
		if !completed[e.SourceID] {
			return false
		}
	}
	return true
}
