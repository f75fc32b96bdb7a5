// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// nodePrefix is the type prefix of node identifiers.
const nodePrefix = "node"

// NodeID identifies one node within an execution graph. Node
// identifiers are unique across graphs — a NodeID alone is enough to
// locate its node without knowing the owning graph. The canonical
// form is "node-" followed by twelve lowercase hex characters.
//
// NodeID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type NodeID struct {
	id string
}

// NewNodeID returns a fresh, unique node identifier.
func NewNodeID() NodeID {
	return NodeID{id: nodePrefix + "-" + randomSuffix()}
}

// ParseNodeID validates and wraps a canonical node ID string.
func ParseNodeID(raw string) (NodeID, error) {
	if _, err := parsePrefixed(raw, nodePrefix, "node"); err != nil {
		return NodeID{}, err
	}
	return NodeID{id: raw}, nil
}

// MustParseNodeID is like ParseNodeID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseNodeID(raw string) NodeID {
	n, err := ParseNodeID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseNodeID(%q): %v", raw, err))
	}
	return n
}

// String returns the canonical form (e.g., "node-91c07be4d2a3").
func (n NodeID) String() string { return n.id }

// IsZero reports whether the NodeID is the zero value (uninitialized).
func (n NodeID) IsZero() bool { return n.id == "" }

// MarshalText implements encoding.TextMarshaler for JSON, CBOR, and
// other serialization formats.
func (n NodeID) MarshalText() ([]byte, error) {
	if n.id == "" {
		return nil, nil
	}
	return []byte(n.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// canonical form. An empty input produces the zero value (unset ID).
func (n *NodeID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*n = NodeID{}
		return nil
	}
	parsed, err := ParseNodeID(string(data))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
