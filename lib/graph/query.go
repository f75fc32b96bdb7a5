// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
)

// Dependencies returns the nodes the given node depends on, in
// creation order. Deactivated dependencies are included — a caller
// deciding readiness needs to see them.
func (g *Graph) Dependencies(node ref.NodeID) ([]ref.NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[node]; !ok {
		return nil, fault.New(fault.NodeNotFound, "node %s not in graph %s", node, g.id)
	}
	return g.sortedLocked(g.deps[node]), nil
}

// Dependents returns the nodes that depend on the given node, in
// creation order.
func (g *Graph) Dependents(node ref.NodeID) ([]ref.NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[node]; !ok {
		return nil, fault.New(fault.NodeNotFound, "node %s not in graph %s", node, g.id)
	}
	return g.sortedLocked(g.dependents[node]), nil
}

// sortedLocked converts a node set to a slice ordered by creation
// sequence. Must be called with g.mu held (read or write).
func (g *Graph) sortedLocked(set map[ref.NodeID]struct{}) []ref.NodeID {
	ids := make([]ref.NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.nodes[ids[i]].Sequence < g.nodes[ids[j]].Sequence
	})
	return ids
}

// Stats summarizes a graph's structure.
type Stats struct {
	// Nodes counts every node ever added, including deactivated ones.
	Nodes int `json:"nodes"`

	// Active counts nodes that are not deactivated.
	Active int `json:"active"`

	// Edges counts dependency edges, including those touching
	// deactivated nodes.
	Edges int `json:"edges"`

	// Roots counts active nodes with no active dependencies.
	Roots int `json:"roots"`

	// Leaves counts active nodes with no active dependents.
	Leaves int `json:"leaves"`

	// Depth is the longest dependency chain over active nodes, in
	// nodes (a single node is depth 1). Zero for an empty graph and
	// for graphs where a cycle makes depth undefined.
	Depth int `json:"depth"`

	// HasCycle reports whether the active portion of the graph
	// contains a cycle. Always false for Production graphs.
	HasCycle bool `json:"has_cycle"`

	// Closed reports whether structural mutation has ended.
	Closed bool `json:"closed"`
}

// Stats computes a structural summary.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		Nodes:  len(g.nodes),
		Edges:  g.edgeCount,
		Closed: g.closed,
	}

	for _, record := range g.nodes {
		if record.Deactivated {
			continue
		}
		stats.Active++
		if g.countActiveLocked(g.deps[record.ID]) == 0 {
			stats.Roots++
		}
		if g.countActiveLocked(g.dependents[record.ID]) == 0 {
			stats.Leaves++
		}
	}

	order, ok := g.topoLocked()
	if !ok {
		stats.HasCycle = true
		return stats
	}

	// Longest chain by dynamic programming over the topological
	// order: a node's depth is one more than its deepest active
	// dependency.
	depth := make(map[ref.NodeID]int, len(order))
	for _, id := range order {
		best := 0
		for dep := range g.deps[id] {
			if g.nodes[dep].Deactivated {
				continue
			}
			if depth[dep] > best {
				best = depth[dep]
			}
		}
		depth[id] = best + 1
		if depth[id] > stats.Depth {
			stats.Depth = depth[id]
		}
	}
	return stats
}

// countActiveLocked counts non-deactivated members of a node set.
// Must be called with g.mu held.
func (g *Graph) countActiveLocked(set map[ref.NodeID]struct{}) int {
	count := 0
	for id := range set {
		if !g.nodes[id].Deactivated {
			count++
		}
	}
	return count
}

// Validate inspects the graph and returns a list of human-readable
// issues, empty when the graph is ready for scheduling. It reports
// cycles among active nodes (possible only in Sandbox graphs) and
// active nodes that depend on deactivated ones — such nodes can never
// become ready.
func (g *Graph) Validate() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var issues []string

	if _, ok := g.topoLocked(); !ok {
		issues = append(issues, fmt.Sprintf("graph %s has a dependency cycle among active nodes", g.id))
	}

	for _, id := range g.order {
		record := g.nodes[id]
		if record.Deactivated {
			continue
		}
		for _, dep := range g.sortedLocked(g.deps[id]) {
			if g.nodes[dep].Deactivated {
				issues = append(issues, fmt.Sprintf(
					"node %s depends on deactivated node %s and can never become ready", id, dep))
			}
		}
	}
	return issues
}
