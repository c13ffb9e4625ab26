// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the task DAG model for Conductor runs.
//
// A Graph holds the nodes (tasks) and directed dependency edges produced by
// the planner. Every graph has exactly one root node representing the user's
// goal; every other node is reachable from the root, because the plan
// ingester connects orphan nodes to the root before publishing a snapshot.
//
// # Immutability
//
// All mutators are copy-on-write: WithNodes and WithEdges return a new Graph
// value and never modify the receiver. Concurrent readers therefore never
// observe a torn graph. The scheduler swaps whole Graph pointers as new plan
// snapshots arrive.
//
// # Trust Boundary
//
// The planner is trusted to emit an acyclic structure. This package rejects
// duplicate node ids and dangling edges but performs no cycle detection;
// the scheduler's deadlock check is the safety net for a planner that
// violates the contract.
//
// # Example
//
//	g := graph.New(graph.Root("ship the release"))
//	g, err := g.WithNodes(graph.Node{ID: "1", Name: "Write changelog", Context: "..."})
//	g, err = g.WithEdges(graph.Edge{SourceID: graph.RootID, TargetID: "1"})
package graph
