// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

// Kind fixes a graph's structural rules at creation.
type Kind uint8

const (
	// Production graphs must stay acyclic: edge insertions that would
	// create a cycle are rejected, and the graph always has a
	// topological order.
	Production Kind = iota

	// Sandbox graphs permit cycles for experimentation. They cannot
	// be topologically ordered while a cycle exists and run under a
	// lower autonomy ceiling.
	Sandbox
)

// String returns "production" or "sandbox".
func (k Kind) String() string {
	switch k {
	case Production:
		return "production"
	case Sandbox:
		return "sandbox"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses "production" or "sandbox".
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case "production":
		return Production, nil
	case "sandbox":
		return Sandbox, nil
	default:
		return 0, fmt.Errorf("unknown graph kind %q", raw)
	}
}

// NodeSpec describes a node to add. The graph assigns the identity.
type NodeSpec struct {
	// Label is a short human name for logs and CLI output. Optional.
	Label string

	// ProfileHash identifies the compiled directive profile the node
	// runs under. Zero when the node carries no profile.
	ProfileHash digest.Digest

	// Caps is the node's declared resource allocation.
	Caps resource.Caps
}

// Node is a snapshot of one node's structural record. Lifecycle state
// lives in the lifecycle registry, not here.
type Node struct {
	ID          ref.NodeID
	Label       string
	ProfileHash digest.Digest
	Caps        resource.Caps

	// Sequence is the node's creation order within its graph,
	// starting at 0. Scheduling uses it to break topological ties
	// deterministically.
	Sequence int

	// Deactivated marks the node as logically removed: excluded from
	// ordering and dispatch, preserved for audit.
	Deactivated bool
}

// Graph is one execution graph. Create with New; all methods are safe
// for concurrent use.
type Graph struct {
	id        ref.GraphID
	kind      Kind
	createdAt time.Time

	mu     sync.RWMutex
	closed bool
	nodes  map[ref.NodeID]*Node

	// order holds node IDs in creation order; Node.Sequence indexes
	// into it.
	order []ref.NodeID

	// deps[n] is the set of nodes n depends on (edge sources).
	// dependents[n] is the inverse. Both sides of every edge are
	// recorded so traversal never scans the whole graph.
	deps       map[ref.NodeID]map[ref.NodeID]struct{}
	dependents map[ref.NodeID]map[ref.NodeID]struct{}
	edgeCount  int
}

// New creates an empty graph of the given kind.
func New(id ref.GraphID, kind Kind, createdAt time.Time) *Graph {
	return &Graph{
		id:         id,
		kind:       kind,
		createdAt:  createdAt,
		nodes:      make(map[ref.NodeID]*Node),
		deps:       make(map[ref.NodeID]map[ref.NodeID]struct{}),
		dependents: make(map[ref.NodeID]map[ref.NodeID]struct{}),
	}
}

// ID returns the graph's identity.
func (g *Graph) ID() ref.GraphID { return g.id }

// Kind returns the structural rules the graph was created with.
func (g *Graph) Kind() Kind { return g.kind }

// CreatedAt returns the graph's creation time.
func (g *Graph) CreatedAt() time.Time { return g.createdAt }

// Closed reports whether structural mutation has ended.
func (g *Graph) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

// AddNode adds a node and returns its new identity. Fails with
// fault.GraphClosed after Close.
func (g *Graph) AddNode(spec NodeSpec) (ref.NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ref.NodeID{}, fault.New(fault.GraphClosed, "graph %s is closed", g.id)
	}

	id := ref.NewNodeID()
	g.nodes[id] = &Node{
		ID:          id,
		Label:       spec.Label,
		ProfileHash: spec.ProfileHash,
		Caps:        spec.Caps,
		Sequence:    len(g.order),
	}
	g.order = append(g.order, id)
	g.deps[id] = make(map[ref.NodeID]struct{})
	g.dependents[id] = make(map[ref.NodeID]struct{})
	return id, nil
}

// AddEdge records that to depends on from: from must merge before to
// dispatches. Self-edges are rejected in every graph kind. In
// Production graphs the edge is additionally rejected with
// fault.CycleDetected if inserting it would create a cycle. Adding an
// edge that already exists is a no-op.
func (g *Graph) AddEdge(from, to ref.NodeID) error {
	if from == to {
		return fault.New(fault.SelfLoop, "node %s cannot depend on itself", from)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fault.New(fault.GraphClosed, "graph %s is closed", g.id)
	}
	if err := g.activeLocked(from); err != nil {
		return err
	}
	if err := g.activeLocked(to); err != nil {
		return err
	}
	if _, exists := g.deps[to][from]; exists {
		return nil
	}

	// A new edge from→to creates a cycle exactly when from already
	// depends on to, directly or transitively. Checking reachability
	// before inserting keeps Production graphs acyclic at every
	// moment rather than only at validation points.
	if g.kind == Production && g.dependsLocked(from, to) {
		return fault.New(fault.CycleDetected,
			"edge %s -> %s would close a cycle in graph %s", from, to, g.id)
	}

	g.deps[to][from] = struct{}{}
	g.dependents[from][to] = struct{}{}
	g.edgeCount++
	return nil
}

// Deactivate logically removes a node: it keeps its structural record
// and history but is excluded from ordering and dispatch. Deactivating
// an already-deactivated node is a no-op. Fails with fault.GraphClosed
// after Close — deactivation is a structural mutation.
func (g *Graph) Deactivate(node ref.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fault.New(fault.GraphClosed, "graph %s is closed", g.id)
	}
	record, ok := g.nodes[node]
	if !ok {
		return fault.New(fault.NodeNotFound, "node %s not in graph %s", node, g.id)
	}
	record.Deactivated = true
	return nil
}

// Close ends structural mutation permanently. Nodes keep moving
// through their lifecycle; only the structure freezes. Closing a
// closed graph fails with fault.GraphClosed.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fault.New(fault.GraphClosed, "graph %s is already closed", g.id)
	}
	g.closed = true
	return nil
}

// Node returns a snapshot of one node's structural record.
func (g *Graph) Node(id ref.NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	record, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *record, true
}

// Nodes returns snapshots of all nodes in creation order, including
// deactivated ones.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snapshot := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		snapshot = append(snapshot, *g.nodes[id])
	}
	return snapshot
}

// activeLocked returns a fault unless the node exists and is active.
// Must be called with g.mu held.
func (g *Graph) activeLocked(node ref.NodeID) error {
	record, ok := g.nodes[node]
	if !ok {
		return fault.New(fault.NodeNotFound, "node %s not in graph %s", node, g.id)
	}
	if record.Deactivated {
		return fault.New(fault.NodeNotFound, "node %s is deactivated", node)
	}
	return nil
}

// dependsLocked reports whether node depends on target, directly or
// transitively, by walking dependency edges (node's deps, their deps,
// and so on). Must be called with g.mu held.
func (g *Graph) dependsLocked(node, target ref.NodeID) bool {
	seen := map[ref.NodeID]struct{}{node: {}}
	stack := []ref.NodeID{node}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range g.deps[current] {
			if dep == target {
				return true
			}
			if _, visited := seen[dep]; visited {
				continue
			}
			seen[dep] = struct{}{}
			stack = append(stack, dep)
		}
	}
	return false
}
