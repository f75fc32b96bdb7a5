// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"

	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/ref"
)

// CreateGraph creates an empty execution graph of the given kind and
// registers it. Creation has no preconditions to gate; it is
// journaled like every other mutation.
func (k *Kernel) CreateGraph(kind graph.Kind) (ref.GraphID, error) {
	switch kind {
	case graph.Production, graph.Sandbox:
	default:
		return ref.GraphID{}, fmt.Errorf("kernel: unknown graph kind %d", uint8(kind))
	}

	g := graph.New(ref.NewGraphID(), kind, k.clock.Now())
	k.graphs.add(g)

	k.journal.Append(journal.Event{
		Graph:  g.ID(),
		Action: "graph/create",
		Result: "ok",
		Attrs:  map[string]string{"kind": kind.String()},
	})
	k.logger.Info("graph created", "graph", g.ID().String(), "kind", kind.String())
	return g.ID(), nil
}

// CloseGraph permanently ends structural mutation on a graph. Nodes
// keep moving through their lifecycle; only the structure freezes.
func (k *Kernel) CloseGraph(id ref.GraphID) error {
	action := compliance.CloseGraph{Graph: id}
	if report := k.gate.Validate(action); !report.Allowed() {
		return k.deny(id, ref.NodeID{}, report)
	}
	target, err := k.graphs.Graph(id)
	if err != nil {
		return k.refused(id, ref.NodeID{}, action.Kind(), err)
	}
	if err := target.Close(); err != nil {
		return k.refused(id, ref.NodeID{}, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Graph:  id,
		Action: action.Kind(),
		Result: "ok",
	})
	k.logger.Info("graph closed", "graph", id.String())
	return nil
}

// GraphStats returns a structural summary of a graph.
func (k *Kernel) GraphStats(id ref.GraphID) (graph.Stats, error) {
	target, err := k.graphs.Graph(id)
	if err != nil {
		return graph.Stats{}, err
	}
	return target.Stats(), nil
}

// AddNode adds a node to an open graph and admits it to the lifecycle
// registry in the Created state.
func (k *Kernel) AddNode(graphID ref.GraphID, spec graph.NodeSpec) (ref.NodeID, error) {
	action := compliance.AddNode{Graph: graphID, Spec: spec}
	if report := k.gate.Validate(action); !report.Allowed() {
		return ref.NodeID{}, k.deny(graphID, ref.NodeID{}, report)
	}
	target, err := k.graphs.Graph(graphID)
	if err != nil {
		return ref.NodeID{}, k.refused(graphID, ref.NodeID{}, action.Kind(), err)
	}
	node, err := target.AddNode(spec)
	if err != nil {
		return ref.NodeID{}, k.refused(graphID, ref.NodeID{}, action.Kind(), err)
	}
	k.states.Admit(node)

	var attrs map[string]string
	if spec.Label != "" {
		attrs = map[string]string{"label": spec.Label}
	}
	k.journal.Append(journal.Event{
		Graph:       graphID,
		Node:        node,
		ProfileHash: spec.ProfileHash,
		Action:      action.Kind(),
		Result:      "ok",
		Attrs:       attrs,
	})
	k.logger.Info("node added",
		"graph", graphID.String(), "node", node.String(), "label", spec.Label)
	return node, nil
}

// AddEdge records that to depends on from: from must merge before to
// dispatches. On Production graphs an edge that would close a cycle
// is denied.
func (k *Kernel) AddEdge(graphID ref.GraphID, from, to ref.NodeID) error {
	action := compliance.AddEdge{Graph: graphID, From: from, To: to}
	if report := k.gate.Validate(action); !report.Allowed() {
		return k.deny(graphID, to, report)
	}
	target, err := k.graphs.Graph(graphID)
	if err != nil {
		return k.refused(graphID, to, action.Kind(), err)
	}
	if err := target.AddEdge(from, to); err != nil {
		return k.refused(graphID, to, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Graph:  graphID,
		Node:   to,
		Action: action.Kind(),
		Result: "ok",
		Attrs:  map[string]string{"from": from.String(), "to": to.String()},
	})
	return nil
}

// DeactivateNode logically removes a node: its record and history
// stay, but it is excluded from ordering and dispatch. Pending
// entries that depended on its output are poisoned by the planner.
func (k *Kernel) DeactivateNode(graphID ref.GraphID, node ref.NodeID) error {
	action := compliance.DeactivateNode{Graph: graphID, Node: node}
	if report := k.gate.Validate(action); !report.Allowed() {
		return k.deny(graphID, node, report)
	}
	target, err := k.graphs.Graph(graphID)
	if err != nil {
		return k.refused(graphID, node, action.Kind(), err)
	}
	if err := target.Deactivate(node); err != nil {
		return k.refused(graphID, node, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Graph:  graphID,
		Node:   node,
		Action: action.Kind(),
		Result: "ok",
	})
	k.logger.Info("node deactivated", "graph", graphID.String(), "node", node.String())
	k.sched.Poke()
	return nil
}
