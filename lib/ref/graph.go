// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// graphPrefix is the type prefix of graph identifiers.
const graphPrefix = "graph"

// GraphID identifies one execution graph for its whole lifetime,
// including after the graph is closed. The canonical form is
// "graph-" followed by twelve lowercase hex characters.
//
// GraphID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type GraphID struct {
	id string
}

// NewGraphID returns a fresh, unique graph identifier.
func NewGraphID() GraphID {
	return GraphID{id: graphPrefix + "-" + randomSuffix()}
}

// ParseGraphID validates and wraps a canonical graph ID string.
func ParseGraphID(raw string) (GraphID, error) {
	if _, err := parsePrefixed(raw, graphPrefix, "graph"); err != nil {
		return GraphID{}, err
	}
	return GraphID{id: raw}, nil
}

// MustParseGraphID is like ParseGraphID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseGraphID(raw string) GraphID {
	g, err := ParseGraphID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseGraphID(%q): %v", raw, err))
	}
	return g
}

// String returns the canonical form (e.g., "graph-3f9ac2d4e8b1").
func (g GraphID) String() string { return g.id }

// IsZero reports whether the GraphID is the zero value (uninitialized).
func (g GraphID) IsZero() bool { return g.id == "" }

// MarshalText implements encoding.TextMarshaler for JSON, CBOR, and
// other serialization formats.
func (g GraphID) MarshalText() ([]byte, error) {
	if g.id == "" {
		return nil, nil
	}
	return []byte(g.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// canonical form. An empty input produces the zero value (unset ID).
func (g *GraphID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*g = GraphID{}
		return nil
	}
	parsed, err := ParseGraphID(string(data))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
