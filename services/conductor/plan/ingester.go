// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
)

// SnapshotHandler receives each published graph snapshot. Snapshots are
// immutable and strictly growing in node and edge count.
type SnapshotHandler func(g *graph.Graph)

// FirstNodeHandler fires at most once, with the first non-root node the
// stream produced. The scheduler uses it to start work before planning
// finishes.
type FirstNodeHandler func(n graph.Node)

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithFirstNodeHandler registers the early-start hook.
func WithFirstNodeHandler(h FirstNodeHandler) IngesterOption {
	return func(i *Ingester) {
		i.onFirstNode = h
	}
}

// WithLogger sets the ingester's logger.
func WithLogger(logger *slog.Logger) IngesterOption {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// Ingester converts a planner chunk stream into graph snapshots.
//
// # Description
//
// After every chunk the accumulated buffer is re-parsed with the
// truncation-tolerant parser. Nodes missing an id, name, or context and
// edges with an absent endpoint are dropped — malformed entries near the
// truncation point are expected, so the valid prefix is always used.
// Orphan nodes are connected to the root before publishing, which keeps
// the reachable-from-root invariant true for every snapshot.
//
// # Failure semantics
//
// Parse failures mid-stream are not errors; they mean "not enough data
// yet". Only a terminal stream failure (an Err chunk) or context
// cancellation is returned from Ingest.
//
// # Thread Safety
//
// An Ingester serves one run; Ingest must not be called concurrently.
// The handlers it calls run on the Ingest goroutine.
type Ingester struct {
	root        graph.Node
	graphID     string
	onSnapshot  SnapshotHandler
	onFirstNode FirstNodeHandler
	logger      *slog.Logger

	buf        strings.Builder
	published  *graph.Graph
	firstFired bool
}

// NewIngester creates an ingester for one run.
//
// Inputs:
//
//	base - The run's root-only graph; its id and root node seed every
//	       rebuilt snapshot.
//	onSnapshot - Receives every published snapshot. Required.
//	opts - Optional configuration.
func NewIngester(base *graph.Graph, onSnapshot SnapshotHandler, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		root:       base.Root(),
		graphID:    base.ID(),
		onSnapshot: onSnapshot,
		published:  base,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Graph returns the most recently published snapshot.
func (i *Ingester) Graph() *graph.Graph {
	return i.published
}

// Ingest consumes the chunk stream until it ends.
//
// Outputs:
//
//	*graph.Graph - The final published snapshot (possibly root-only).
//	error - The stream's terminal failure or ctx.Err(); nil on a clean
//	        end, even when the plan turned out to be empty.
func (i *Ingester) Ingest(ctx context.Context, chunks <-chan Chunk) (*graph.Graph, error) {
	for {
		select {
		case <-ctx.Done():
			return i.published, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				i.finish()
				i.logger.Debug("plan stream finished",
					slog.Int("nodes", i.published.NodeCount()),
					slog.Int("edges", i.published.EdgeCount()),
				)
				return i.published, nil
			}
			if chunk.Err != nil {
				return i.published, fmt.Errorf("plan stream failed: %w", chunk.Err)
			}
			i.buf.WriteString(chunk.Text)
			i.tryPublish()
		}
	}
}

// tryPublish re-parses the buffer and publishes when the graph grew.
func (i *Ingester) tryPublish() {
	doc, ok := parseDocument(i.buf.String())
	if !ok {
		return
	}

	snapshot, err := i.build(doc)
	if err != nil {
		// Only reachable if filtering missed a structural problem;
		// treat like an unparseable buffer and wait for more data.
		i.logger.Warn("discarding unbuildable plan snapshot", slog.String("error", err.Error()))
		return
	}

	if snapshot.NodeCount() <= i.published.NodeCount() && snapshot.EdgeCount() <= i.published.EdgeCount() {
		return
	}

	i.published = snapshot
	i.onSnapshot(snapshot)

	if !i.firstFired && i.onFirstNode != nil && snapshot.NodeCount() > 1 {
		i.firstFired = true
		i.onFirstNode(snapshot.Nodes()[1])
	}
}

// finish publishes the final rebuild after a clean stream end. The
// growth check in tryPublish skips rebuilds where an authored edge
// replaced a synthesized root edge without changing the counts, so the
// last buffer state is rebuilt and compared structurally here.
func (i *Ingester) finish() {
	doc, ok := parseDocument(i.buf.String())
	if !ok {
		return
	}
	snapshot, err := i.build(doc)
	if err != nil {
		i.logger.Warn("discarding unbuildable plan snapshot", slog.String("error", err.Error()))
		return
	}
	if snapshot.NodeCount() < i.published.NodeCount() {
		return
	}
	if sameEdges(snapshot, i.published) && snapshot.NodeCount() == i.published.NodeCount() {
		return
	}
	i.published = snapshot
	i.onSnapshot(snapshot)
}

// sameEdges reports whether two graphs carry identical edge lists.
func sameEdges(a, b *graph.Graph) bool {
	ae, be := a.Edges(), b.Edges()
	if len(ae) != len(be) {
		return false
	}
	for idx := range ae {
		if ae[idx] != be[idx] {
			return false
		}
	}
	return true
}

// build assembles a valid graph from the filtered document.
func (i *Ingester) build(doc document) (*graph.Graph, error) {
	g := graph.NewWithID(i.graphID, i.root)

	kept := make(map[string]bool, len(doc.Nodes))
	var nodes []graph.Node
	for _, n := range doc.Nodes {
		if n.ID == "" || n.Name == "" || n.Context == "" {
			continue
		}
		if n.ID == graph.RootID || kept[n.ID] {
			continue
		}
		kept[n.ID] = true
		nodes = append(nodes, graph.Node{ID: n.ID, Name: n.Name, Context: n.Context})
	}

	g, err := g.WithNodes(nodes...)
	if err != nil {
		return nil, err
	}

	var edges []graph.Edge
	for _, e := range doc.Edges {
		if e.SourceID == "" || e.TargetID == "" {
			continue
		}
		// An edge may reference a node that is still truncated; keep
		// only edges whose endpoints survived filtering.
		if e.SourceID != graph.RootID && !kept[e.SourceID] {
			continue
		}
		if !kept[e.TargetID] {
			continue
		}
		edges = append(edges, graph.Edge{SourceID: e.SourceID, TargetID: e.TargetID})
	}

	g, err = g.WithEdges(edges...)
	if err != nil {
		return nil, err
	}

	for _, orphan := range g.Orphans() {
		g, err = g.WithEdges(graph.Edge{SourceID: graph.RootID, TargetID: orphan.ID})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}
