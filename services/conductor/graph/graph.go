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

import (
	"github.com/google/uuid"
)

// RootID is the fixed sentinel id of the root node in every graph.
//
// The root represents the user's goal. Planner output never contains it;
// the engine creates it at run start and the ingester connects every
// orphan node to it.
const RootID = "0"

// Node is a single task in the plan.
//
// Nodes are never mutated after creation. Execution state lives in the
// scheduler's result map, not on the node.
type Node struct {
	// ID uniquely identifies the node within a graph.
	ID string `json:"id"`

	// Name is the human-readable label.
	Name string `json:"name"`

	// Context carries free-text instructions for the execution collaborator.
	Context string `json:"context"`
}

// IsRoot reports whether the node is the goal sentinel.
func (n Node) IsRoot() bool {
	return n.ID == RootID
}

// Edge is a directed dependency: the target depends on the source.
type Edge struct {
	// SourceID is the id of the node that must complete first.
	SourceID string `json:"sourceId"`

	// TargetID is the id of the dependent node.
	TargetID string `json:"targetId"`
}

// Root builds the sentinel root node for a goal.
func Root(goal string) Node {
	return Node{ID: RootID, Name: goal, Context: goal}
}

// Graph is an immutable snapshot of the plan DAG.
//
// Description:
//
//	Graph owns nodes and edges plus a run-scoped identifier. Nodes and
//	edges preserve insertion order. Node order is meaningful to the
//	readiness resolver; edge order carries no ordering guarantee.
//
// Thread Safety:
//
//	A Graph value is never modified after construction and is safe for
//	concurrent readers. Mutators return a new Graph.
type Graph struct {
	id    string
	nodes []Node
	edges []Edge
	byID  map[string]int // node id -> index into nodes
}

// New creates a graph containing only the root node.
//
// Inputs:
//
//	root - The sentinel goal node, usually graph.Root(goal).
//
// Outputs:
//
//	*Graph - A graph with a fresh run-scoped id.
func New(root Node) *Graph {
	return NewWithID(uuid.NewString(), root)
}

// NewWithID creates a root-only graph with an explicit identifier.
//
// The plan ingester rebuilds the graph from scratch on every successful
// parse; reusing the run's id keeps all snapshots of one run correlated.
func NewWithID(id string, root Node) *Graph {
	return &Graph{
		id:    id,
		nodes: []Node{root},
		byID:  map[string]int{root.ID: 0},
	}
}

// ID returns the run-scoped graph identifier.
func (g *Graph) ID() string {
	return g.id
}

// Nodes returns all nodes in insertion order. Callers must not modify
// the returned slice.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Edges returns all edges in insertion order. Callers must not modify
// the returned slice.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Node returns a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Root returns the sentinel root node.
func (g *Graph) Root() Node {
	n, _ := g.Node(RootID)
	return n
}

// NodeCount returns the number of nodes, including the root.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Incoming returns the edges whose target is the given node id.
func (g *Graph) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range g.edges {
		if e.TargetID == id {
			in = append(in, e)
		}
	}
	return in
}

// Index returns the insertion position of a node id, or -1 if unknown.
//
// The readiness resolver uses insertion order to decide whether a node's
// authored context is stable: a later node in the stream implies the
// planner has moved past this one.
func (g *Graph) Index(id string) int {
	i, ok := g.byID[id]
	if !ok {
		return -1
	}
	return i
}

// WithNodes returns a new graph with the given nodes appended.
//
// Description:
//
//	Copy-on-write append. A node whose id already exists in the graph,
//	or appears twice in the argument list, yields a DuplicateNodeError
//	and the receiver is returned unchanged.
//
// Inputs:
//
//	nodes - Nodes to append, in order.
//
// Outputs:
//
//	*Graph - The new graph (the receiver on error).
//	error - Non-nil on empty id or duplicate id.
func (g *Graph) WithNodes(nodes ...Node) (*Graph, error) {
	if len(nodes) == 0 {
		return g, nil
	}

	next := g.clone()
	for _, n := range nodes {
		if n.ID == "" {
			return g, ErrEmptyNodeID
		}
		if _, exists := next.byID[n.ID]; exists {
			return g, &DuplicateNodeError{ID: n.ID}
		}
		next.byID[n.ID] = len(next.nodes)
		next.nodes = append(next.nodes, n)
	}
	return next, nil
}

// WithEdges returns a new graph with the given edges appended.
//
// Description:
//
//	Copy-on-write append. Both endpoints must already exist; an unknown
//	endpoint yields a DanglingEdgeError and the receiver is returned
//	unchanged. An edge identical to an existing one is skipped, keeping
//	the operation idempotent across replayed plan snapshots.
//
// Inputs:
//
//	edges - Edges to append, in order.
//
// Outputs:
//
//	*Graph - The new graph (the receiver on error).
//	error - Non-nil when an endpoint id is unknown.
func (g *Graph) WithEdges(edges ...Edge) (*Graph, error) {
	if len(edges) == 0 {
		return g, nil
	}

	next := g.clone()
	seen := make(map[Edge]bool, len(next.edges))
	for _, e := range next.edges {
		seen[e] = true
	}

	for _, e := range edges {
		if _, ok := next.byID[e.SourceID]; !ok {
			return g, &DanglingEdgeError{SourceID: e.SourceID, TargetID: e.TargetID, Missing: e.SourceID}
		}
		if _, ok := next.byID[e.TargetID]; !ok {
			return g, &DanglingEdgeError{SourceID: e.SourceID, TargetID: e.TargetID, Missing: e.TargetID}
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		next.edges = append(next.edges, e)
	}
	return next, nil
}

// Orphans returns the non-root nodes with no incoming edge.
//
// The ingester connects each of these to the root before publishing a
// snapshot, so published graphs never contain orphans.
func (g *Graph) Orphans() []Node {
	hasIncoming := make(map[string]bool, len(g.nodes))
	for _, e := range g.edges {
		hasIncoming[e.TargetID] = true
	}

	var orphans []Node
	for _, n := range g.nodes {
		if n.IsRoot() {
			continue
		}
		if !hasIncoming[n.ID] {
			orphans = append(orphans, n)
		}
	}
	return orphans
}

// clone makes a shallow structural copy sharing node/edge values.
func (g *Graph) clone() *Graph {
	next := &Graph{
		id:    g.id,
		nodes: make([]Node, len(g.nodes), len(g.nodes)+4),
		edges: make([]Edge, len(g.edges), len(g.edges)+4),
		byID:  make(map[string]int, len(g.byID)+4),
	}
	copy(next.nodes, g.nodes)
	copy(next.edges, g.edges)
	for id, i := range g.byID {
		next.byID[id] = i
	}
	return next
}
