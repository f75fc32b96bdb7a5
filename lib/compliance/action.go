// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compliance

import (
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/token"
)

// Action is one proposed kernel operation. The set of variants is
// closed: the unexported marker keeps implementations inside this
// package, so the gate's dispatch is exhaustive and a new action kind
// forces a compile-time-visible update here.
type Action interface {
	// Kind returns the hierarchical action descriptor, e.g.
	// "graph/edge". The same string names the operation in journal
	// events.
	Kind() string

	isAction()
}

// AddNode proposes adding a node to a graph.
type AddNode struct {
	Graph ref.GraphID
	Spec  graph.NodeSpec
}

// AddEdge proposes a dependency edge between two existing nodes.
type AddEdge struct {
	Graph ref.GraphID
	From  ref.NodeID
	To    ref.NodeID
}

// CloseGraph proposes ending a graph's structural mutation.
type CloseGraph struct {
	Graph ref.GraphID
}

// DeactivateNode proposes logically removing a node.
type DeactivateNode struct {
	Graph ref.GraphID
	Node  ref.NodeID
}

// FreezeNode proposes blocking a node's execution by policy.
type FreezeNode struct {
	Graph ref.GraphID
	Node  ref.NodeID
}

// IssueToken proposes minting a capability token for a node.
type IssueToken struct {
	Graph       ref.GraphID
	Node        ref.NodeID
	Level       token.Level
	Caps        resource.Caps
	ProfileHash digest.Digest
}

// DowngradeToken proposes deriving a lower-level token from an
// existing one.
type DowngradeToken struct {
	Wire  []byte
	Level token.Level
}

// Transition proposes a token-authorized lifecycle move.
type Transition struct {
	Graph ref.GraphID
	Node  ref.NodeID
	To    lifecycle.State
	Wire  []byte
}

// Dispatch proposes admitting a node for scheduled execution.
type Dispatch struct {
	Graph ref.GraphID
	Node  ref.NodeID
	Wire  []byte
}

// AppendRecord proposes an out-of-band observability append to the
// journal. External appends live under the "external/" action
// namespace so they can never impersonate kernel records.
type AppendRecord struct {
	Action string
}

func (AddNode) Kind() string        { return "graph/node" }
func (AddEdge) Kind() string        { return "graph/edge" }
func (CloseGraph) Kind() string     { return "graph/close" }
func (DeactivateNode) Kind() string { return "graph/deactivate" }
func (FreezeNode) Kind() string     { return "state/freeze" }
func (IssueToken) Kind() string     { return "token/issue" }
func (DowngradeToken) Kind() string { return "token/downgrade" }
func (Transition) Kind() string     { return "state/transition" }
func (Dispatch) Kind() string       { return "schedule/dispatch" }
func (AppendRecord) Kind() string   { return "log/append" }

func (AddNode) isAction()        {}
func (AddEdge) isAction()        {}
func (CloseGraph) isAction()     {}
func (DeactivateNode) isAction() {}
func (FreezeNode) isAction()     {}
func (IssueToken) isAction()     {}
func (DowngradeToken) isAction() {}
func (Transition) isAction()     {}
func (Dispatch) isAction()       {}
func (AppendRecord) isAction()   {}
