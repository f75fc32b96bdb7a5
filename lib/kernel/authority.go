// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"time"

	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/token"
)

// TokenRequest describes a capability token to mint.
type TokenRequest struct {
	Graph ref.GraphID
	Node  ref.NodeID
	Level token.Level
	Caps  resource.Caps

	// ProfileHash pins the compiled directive profile the token
	// authorizes. Zero when the node runs without one.
	ProfileHash digest.Digest

	// TTL overrides the configured validity window when positive.
	TTL time.Duration
}

// IssueToken mints a capability token for a node. The requested level
// must clear the autonomy ceiling of the node's graph kind, and the
// caps must fit both the per-token maxima and the process budget. The
// ceiling baked into the token is the graph kind's, so downgrades
// derived from it can never drift above policy.
func (k *Kernel) IssueToken(req TokenRequest) (token.Issued, error) {
	action := compliance.IssueToken{
		Graph:       req.Graph,
		Node:        req.Node,
		Level:       req.Level,
		Caps:        req.Caps,
		ProfileHash: req.ProfileHash,
	}
	if report := k.gate.Validate(action); !report.Allowed() {
		return token.Issued{}, k.deny(req.Graph, req.Node, report)
	}
	target, err := k.graphs.Graph(req.Graph)
	if err != nil {
		return token.Issued{}, k.refused(req.Graph, req.Node, action.Kind(), err)
	}
	issued, err := k.engine.Issue(token.IssueRequest{
		Node:        req.Node,
		Level:       req.Level,
		Ceiling:     k.ceilings.For(target.Kind()),
		Caps:        req.Caps,
		ProfileHash: req.ProfileHash,
		TTL:         req.TTL,
	})
	if err != nil {
		return token.Issued{}, k.refused(req.Graph, req.Node, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Graph:       req.Graph,
		Node:        req.Node,
		Level:       uint8(req.Level),
		ProfileHash: req.ProfileHash,
		Action:      action.Kind(),
		Result:      "ok",
		Attrs: map[string]string{
			"fingerprint": token.FormatFingerprint(issued.Fingerprint),
			"expires":     time.Unix(issued.Token.ExpiresAt, 0).UTC().Format(time.RFC3339),
		},
	})
	k.logger.Info("token issued",
		"node", req.Node.String(),
		"level", req.Level.String(),
		"fingerprint", token.FormatFingerprint(issued.Fingerprint))
	return issued, nil
}

// DowngradeToken derives a token of equal or lower level from an
// existing valid token. The derived token keeps the original's node,
// caps, ceiling, and profile hash, and never outlives it.
func (k *Kernel) DowngradeToken(wire []byte, level token.Level) (token.Issued, error) {
	action := compliance.DowngradeToken{Wire: wire, Level: level}
	if report := k.gate.Validate(action); !report.Allowed() {
		return token.Issued{}, k.deny(ref.GraphID{}, ref.NodeID{}, report)
	}
	issued, err := k.engine.Downgrade(wire, level)
	if err != nil {
		return token.Issued{}, k.refused(ref.GraphID{}, ref.NodeID{}, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Node:        issued.Token.Node,
		Level:       uint8(level),
		ProfileHash: issued.Token.ProfileHash,
		Action:      action.Kind(),
		Result:      "ok",
		Attrs: map[string]string{
			"fingerprint": token.FormatFingerprint(issued.Fingerprint),
			"parent":      token.FormatFingerprint(issued.Token.Parent),
		},
	})
	k.logger.Info("token downgraded",
		"node", issued.Token.Node.String(),
		"level", level.String(),
		"fingerprint", token.FormatFingerprint(issued.Fingerprint))
	return issued, nil
}

// ValidateToken produces a structured validation report for a
// wire-form token: signature, binding, expiry, each with its own
// pass/fail. Diagnostic only; enforcement paths verify internally.
func (k *Kernel) ValidateToken(wire []byte, bound ref.NodeID) token.Report {
	return k.engine.Validate(wire, bound)
}

// Transition moves a node through its lifecycle under the authority
// of a capability token, journals the move, and wakes the scheduler
// so entries waiting on the node re-evaluate promptly.
func (k *Kernel) Transition(graphID ref.GraphID, node ref.NodeID, to lifecycle.State, wire []byte) (lifecycle.Receipt, error) {
	action := compliance.Transition{Graph: graphID, Node: node, To: to, Wire: wire}
	if report := k.gate.Validate(action); !report.Allowed() {
		return lifecycle.Receipt{}, k.deny(graphID, node, report)
	}
	receipt, err := k.states.Transition(node, to, wire)
	if err != nil {
		return lifecycle.Receipt{}, k.refused(graphID, node, action.Kind(), err)
	}

	// Re-open the token for event metadata; the gate just proved it
	// verifies.
	var level uint8
	var profile digest.Digest
	if checked, err := k.engine.Verify(wire, node); err == nil {
		level = uint8(checked.Token.Level)
		profile = checked.Token.ProfileHash
	}
	k.journal.Append(journal.Event{
		Graph:       graphID,
		Node:        node,
		Level:       level,
		ProfileHash: profile,
		Action:      action.Kind(),
		Result:      "ok",
		Attrs: map[string]string{
			"from":  receipt.From.String(),
			"to":    receipt.To.String(),
			"token": token.FormatFingerprint(receipt.Fingerprint),
		},
	})
	k.sched.Poke()
	return receipt, nil
}

// FreezeNode blocks a node's execution by kernel policy. No token is
// required: freezing is the operator's safety lever, and the
// transition table admits it from every state except Merged and
// Frozen itself.
func (k *Kernel) FreezeNode(graphID ref.GraphID, node ref.NodeID) error {
	action := compliance.FreezeNode{Graph: graphID, Node: node}
	if report := k.gate.Validate(action); !report.Allowed() {
		return k.deny(graphID, node, report)
	}
	receipt, err := k.states.Force(node, lifecycle.Frozen)
	if err != nil {
		return k.refused(graphID, node, action.Kind(), err)
	}

	k.journal.Append(journal.Event{
		Graph:  graphID,
		Node:   node,
		Action: action.Kind(),
		Result: "ok",
		Attrs:  map[string]string{"from": receipt.From.String()},
	})
	k.logger.Info("node frozen",
		"graph", graphID.String(), "node", node.String(), "from", receipt.From.String())
	k.sched.Poke()
	return nil
}

// CurrentState returns a node's lifecycle state. Reads are always
// permitted and never journaled.
func (k *Kernel) CurrentState(node ref.NodeID) (lifecycle.State, error) {
	return k.states.Current(node)
}

// AllowedTransitions returns the states reachable from the node's
// current state in one legal move, in transition-table order.
func (k *Kernel) AllowedTransitions(node ref.NodeID) ([]lifecycle.State, error) {
	return k.states.AllowedFor(node)
}
