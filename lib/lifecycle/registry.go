// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/token"
)

// TokenVerifier validates a wire-form token bound to a node. It is
// satisfied by *token.Engine.
type TokenVerifier interface {
	Verify(wire []byte, bound ref.NodeID) (token.Checked, error)
}

// Receipt records a committed transition.
type Receipt struct {
	Node ref.NodeID `json:"node"`
	From State      `json:"from"`
	To   State      `json:"to"`
	// Fingerprint identifies the authorizing token. Zero for
	// kernel-policy transitions, which carry no token.
	Fingerprint digest.Digest `json:"fingerprint"`
	Time        time.Time     `json:"time"`
}

// cell is one node's state. The state commits by compare-and-swap;
// changed carries the commit time for stall detection.
type cell struct {
	state   atomic.Uint32
	changed atomic.Int64
}

// Registry tracks the lifecycle state of every admitted node.
type Registry struct {
	verifier TokenVerifier
	clock    clock.Clock

	mu    sync.RWMutex
	cells map[ref.NodeID]*cell
}

// NewRegistry builds a registry that verifies transition tokens
// through the given verifier.
func NewRegistry(verifier TokenVerifier, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.Real()
	}
	return &Registry{
		verifier: verifier,
		clock:    clk,
		cells:    make(map[ref.NodeID]*cell),
	}
}

// Admit registers a node in the Created state. Admitting a node that
// is already present is a no-op: state is never reset.
func (r *Registry) Admit(node ref.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cells[node]; ok {
		return
	}
	c := &cell{}
	c.changed.Store(r.clock.Now().UnixNano())
	r.cells[node] = c
}

func (r *Registry) lookup(node ref.NodeID) (*cell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cells[node]
	if !ok {
		return nil, fault.New(fault.NodeNotFound, "node %s is not admitted", node)
	}
	return c, nil
}

// Current returns the node's state. Always permitted; requires no
// token.
func (r *Registry) Current(node ref.NodeID) (State, error) {
	c, err := r.lookup(node)
	if err != nil {
		return 0, err
	}
	return State(c.state.Load()), nil
}

// AllowedFor returns the transitions legal from the node's current
// state.
func (r *Registry) AllowedFor(node ref.NodeID) ([]State, error) {
	current, err := r.Current(node)
	if err != nil {
		return nil, err
	}
	return Allowed(current), nil
}

// Changed returns the commit time of the node's most recent
// transition (admission time if none). The watchdog uses this to
// detect stalls.
func (r *Registry) Changed(node ref.NodeID) (time.Time, error) {
	c, err := r.lookup(node)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, c.changed.Load()), nil
}

// Transition moves a node to a new state under the authority of a
// capability token. The token must verify and be bound to the node;
// the move must be in the transition table. Concurrent attempts on
// the same node race: the first to commit wins, the rest observe
// TransitionInProgress with state unchanged.
func (r *Registry) Transition(node ref.NodeID, to State, wire []byte) (Receipt, error) {
	c, err := r.lookup(node)
	if err != nil {
		return Receipt{}, err
	}
	from := State(c.state.Load())
	if !Legal(from, to) {
		return Receipt{}, fault.New(fault.IllegalTransition, "no transition from %s to %s", from, to)
	}
	if len(wire) == 0 {
		return Receipt{}, fault.New(fault.TokenRequired, "transition %s to %s requires a token", from, to)
	}
	checked, err := r.verifier.Verify(wire, node)
	if err != nil {
		return Receipt{}, err
	}
	return r.commit(c, node, from, to, checked.Fingerprint)
}

// Force moves a node under kernel authority: same table, no token.
// This is the path for policy actions — watchdog freezes, poisoned-
// dependency freezes, operator escalation.
func (r *Registry) Force(node ref.NodeID, to State) (Receipt, error) {
	c, err := r.lookup(node)
	if err != nil {
		return Receipt{}, err
	}
	from := State(c.state.Load())
	if !Legal(from, to) {
		return Receipt{}, fault.New(fault.IllegalTransition, "no transition from %s to %s", from, to)
	}
	return r.commit(c, node, from, to, digest.Digest{})
}

func (r *Registry) commit(c *cell, node ref.NodeID, from, to State, fp digest.Digest) (Receipt, error) {
	if !c.state.CompareAndSwap(uint32(from), uint32(to)) {
		return Receipt{}, fault.New(fault.TransitionInProgress, "node %s: concurrent transition committed first", node)
	}
	now := r.clock.Now()
	c.changed.Store(now.UnixNano())
	return Receipt{
		Node:        node,
		From:        from,
		To:          to,
		Fingerprint: fp,
		Time:        now,
	}, nil
}
