// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"container/heap"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
)

// TopologicalOrder returns the active nodes sorted so that every node
// appears after all of its active dependencies. Ties are broken by
// creation sequence, making the order deterministic for a given
// structure. Deactivated nodes are excluded, and edges touching them
// impose no ordering constraint.
//
// Fails with fault.CycleDetected when the active nodes contain a
// cycle — possible only in Sandbox graphs.
func (g *Graph) TopologicalOrder() ([]ref.NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, ok := g.topoLocked()
	if !ok {
		return nil, fault.New(fault.CycleDetected,
			"graph %s has a cycle among active nodes, no topological order exists", g.id)
	}
	return order, nil
}

// topoLocked is Kahn's algorithm with a creation-sequence min-heap:
// among all ready nodes, the earliest-created dispatches first. The
// boolean is false when a cycle prevents a complete order. Must be
// called with g.mu held.
func (g *Graph) topoLocked() ([]ref.NodeID, bool) {
	indegree := make(map[ref.NodeID]int, len(g.nodes))
	for _, id := range g.order {
		if g.nodes[id].Deactivated {
			continue
		}
		degree := 0
		for dep := range g.deps[id] {
			if !g.nodes[dep].Deactivated {
				degree++
			}
		}
		indegree[id] = degree
	}

	ready := &sequenceHeap{graph: g}
	heap.Init(ready)
	for _, id := range g.order {
		if degree, active := indegree[id]; active && degree == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]ref.NodeID, 0, len(indegree))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(ref.NodeID)
		order = append(order, id)
		for dependent := range g.dependents[id] {
			if g.nodes[dependent].Deactivated {
				continue
			}
			indegree[dependent]--
			if indegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	// Nodes left with positive indegree sit on a cycle.
	return order, len(order) == len(indegree)
}

// sequenceHeap is a min-heap of node IDs ordered by creation
// sequence. It reads sequences through the owning graph and must only
// be used while the graph's lock is held.
type sequenceHeap struct {
	graph *Graph
	ids   []ref.NodeID
}

func (h *sequenceHeap) Len() int { return len(h.ids) }

func (h *sequenceHeap) Less(i, j int) bool {
	return h.graph.nodes[h.ids[i]].Sequence < h.graph.nodes[h.ids[j]].Sequence
}

func (h *sequenceHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *sequenceHeap) Push(x any) { h.ids = append(h.ids, x.(ref.NodeID)) }

func (h *sequenceHeap) Pop() any {
	last := len(h.ids) - 1
	id := h.ids[last]
	h.ids = h.ids[:last]
	return id
}
