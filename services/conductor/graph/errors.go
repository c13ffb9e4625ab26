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
	"errors"
	"fmt"
)

// Sentinel errors for the graph package.
var (
	// ErrDuplicateNode is returned when adding a node with an existing id.
	ErrDuplicateNode = errors.New("node with this id already exists")

	// ErrDanglingEdge is returned when an edge references an unknown node.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrEmptyNodeID is returned when a node with an empty id is added.
	ErrEmptyNodeID = errors.New("node id must not be empty")
)

// DuplicateNodeError reports which node id collided.
type DuplicateNodeError struct {
	ID string
}

// Error returns the error message.
func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.ID, ErrDuplicateNode)
}

// Unwrap returns ErrDuplicateNode so callers can match with errors.Is.
func (e *DuplicateNodeError) Unwrap() error {
	return ErrDuplicateNode
}

// DanglingEdgeError reports an edge whose endpoint does not exist.
type DanglingEdgeError struct {
	SourceID string
	TargetID string
	Missing  string
}

// Error returns the error message.
func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s -> %s: %v (%q)", e.SourceID, e.TargetID, ErrDanglingEdge, e.Missing)
}

// Unwrap returns ErrDanglingEdge so callers can match with errors.Is.
func (e *DanglingEdgeError) Unwrap() error {
	return ErrDanglingEdge
}
