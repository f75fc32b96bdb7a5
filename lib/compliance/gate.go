// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compliance

import (
	"strings"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/token"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	// Deny means the action is not permitted.
	Deny Decision = iota

	// Allow means the action is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// CheckTrace records the outcome of one check stage. Each stage
// appears at most once per validation, in the order it ran.
type CheckTrace struct {
	// Check names the stage: "graph", "token", "ceiling",
	// "resources", "transition", or "policy".
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report is the gate's answer: the decision plus the trace of every
// stage that ran, in order. On denial, FailedCheck and Failure name
// the stage and fault; the trace supports audit logging and operator
// debugging.
type Report struct {
	Decision    Decision     `json:"decision"`
	Action      string       `json:"action"`
	Trace       []CheckTrace `json:"trace"`
	FailedCheck string       `json:"failed_check,omitempty"`
	Failure     fault.Code   `json:"failure,omitempty"`
	Detail      string       `json:"detail,omitempty"`

	err error
}

// Allowed reports whether the action may proceed.
func (r Report) Allowed() bool { return r.Decision == Allow }

// Err returns the underlying fault of a denial, nil for an allow.
// The error matches errors.Is against the fault code.
func (r Report) Err() error { return r.err }

// GraphSource resolves graph identifiers. The kernel's graph
// registry implements it.
type GraphSource interface {
	Graph(id ref.GraphID) (*graph.Graph, error)
}

// TokenChecker verifies wire-form tokens. *token.Engine implements
// it.
type TokenChecker interface {
	Verify(wire []byte, bound ref.NodeID) (token.Checked, error)
}

// StateSource reads node lifecycle state. *lifecycle.Registry
// implements it.
type StateSource interface {
	Current(node ref.NodeID) (lifecycle.State, error)
}

// CeilingPolicy holds the autonomy ceilings per graph kind. Sandbox
// graphs typically run under a lower ceiling than production ones:
// their structure is unverified, so less unsupervised authority is
// extended into them.
type CeilingPolicy struct {
	Production token.Level `json:"production" yaml:"production"`
	Sandbox    token.Level `json:"sandbox" yaml:"sandbox"`
}

// For returns the ceiling for a graph kind.
func (p CeilingPolicy) For(kind graph.Kind) token.Level {
	if kind == graph.Sandbox {
		return p.Sandbox
	}
	return p.Production
}

// Config carries the gate's collaborators.
type Config struct {
	Graphs   GraphSource
	Tokens   TokenChecker
	States   StateSource
	Ledger   *Ledger
	Ceilings CeilingPolicy
	// MaxTokenCaps mirrors the token engine's per-token maxima for
	// policy reporting.
	MaxTokenCaps resource.Caps
}

// Gate composes graph, token, lifecycle, and resource checks into a
// single admission decision.
type Gate struct {
	graphs       GraphSource
	tokens       TokenChecker
	states       StateSource
	ledger       *Ledger
	ceilings     CeilingPolicy
	maxTokenCaps resource.Caps
}

// NewGate builds a gate from its collaborators.
func NewGate(cfg Config) *Gate {
	return &Gate{
		graphs:       cfg.Graphs,
		tokens:       cfg.Tokens,
		states:       cfg.States,
		ledger:       cfg.Ledger,
		ceilings:     cfg.Ceilings,
		maxTokenCaps: cfg.MaxTokenCaps,
	}
}

// run accumulates stage results into a report, short-circuiting after
// the first failure.
type run struct {
	report Report
	failed bool
}

// check records one stage. It returns false once any stage has
// failed, so callers chain stages with early returns.
func (r *run) check(name string, err error) bool {
	if r.failed {
		return false
	}
	trace := CheckTrace{Check: name, Passed: err == nil}
	if err != nil {
		trace.Detail = err.Error()
		r.failed = true
		r.report.FailedCheck = name
		r.report.Detail = trace.Detail
		r.report.err = err
		if code, ok := fault.CodeOf(err); ok {
			r.report.Failure = code
		}
	}
	r.report.Trace = append(r.report.Trace, trace)
	return err == nil
}

func (r *run) finish() Report {
	if !r.failed {
		r.report.Decision = Allow
	}
	return r.report
}

// Validate runs the stages the action kind requires — graph
// integrity, token validity, autonomy ceiling, resource availability,
// transition legality, in that order — and returns the decision with
// its trace. Validate never mutates anything: a passed report is an
// admission, and the owning component re-checks atomically when the
// kernel applies the operation.
func (g *Gate) Validate(action Action) Report {
	r := &run{report: Report{Action: action.Kind()}}

	switch a := action.(type) {
	case AddNode:
		_, err := g.resolveOpen(a.Graph)
		if !r.check("graph", err) {
			break
		}
		r.check("resources", g.capsWithinBudget(a.Spec.Caps))

	case AddEdge:
		target, err := g.resolveOpen(a.Graph)
		if err == nil {
			err = g.activeNode(target, a.From)
		}
		if err == nil {
			err = g.activeNode(target, a.To)
		}
		if err == nil && a.From == a.To {
			err = fault.New(fault.SelfLoop, "node %s cannot depend on itself", a.From)
		}
		r.check("graph", err)

	case CloseGraph:
		_, err := g.resolveOpen(a.Graph)
		r.check("graph", err)

	case DeactivateNode:
		target, err := g.resolveOpen(a.Graph)
		if err == nil {
			if _, found := target.Node(a.Node); !found {
				err = fault.New(fault.NodeNotFound, "node %s not in graph %s", a.Node, a.Graph)
			}
		}
		r.check("graph", err)

	case FreezeNode:
		target, err := g.resolve(a.Graph)
		if err == nil {
			err = g.activeNode(target, a.Node)
		}
		if !r.check("graph", err) {
			break
		}
		g.legalMove(r, a.Node, lifecycle.Frozen)

	case IssueToken:
		target, err := g.resolve(a.Graph)
		if err == nil {
			err = g.activeNode(target, a.Node)
		}
		if !r.check("graph", err) {
			break
		}
		ceiling := g.ceilings.For(target.Kind())
		var ceilingErr error
		if a.Level > ceiling {
			ceilingErr = fault.New(fault.CeilingExceeded,
				"level %s exceeds %s ceiling %s", a.Level, target.Kind(), ceiling)
		}
		if !r.check("ceiling", ceilingErr) {
			break
		}
		r.check("resources", g.capsWithinBudget(a.Caps))

	case DowngradeToken:
		checked, ok := g.verifiedToken(r, a.Wire, ref.NodeID{})
		if !ok {
			break
		}
		var err error
		if a.Level > checked.Token.Level {
			err = fault.New(fault.ElevationForbidden,
				"cannot raise %s token to %s", checked.Token.Level, a.Level)
		}
		r.check("ceiling", err)

	case Transition:
		target, err := g.resolve(a.Graph)
		if err == nil {
			err = g.activeNode(target, a.Node)
		}
		if !r.check("graph", err) {
			break
		}
		if _, ok := g.verifiedToken(r, a.Wire, a.Node); !ok {
			break
		}
		g.legalMove(r, a.Node, a.To)

	case Dispatch:
		target, err := g.resolve(a.Graph)
		if err == nil {
			err = g.activeNode(target, a.Node)
		}
		if !r.check("graph", err) {
			break
		}
		checked, ok := g.verifiedToken(r, a.Wire, a.Node)
		if !ok {
			break
		}
		var fitsErr error
		if !g.ledger.Fits(checked.Token.Caps) {
			fitsErr = fault.New(fault.LimitExceeded,
				"token caps %s do not fit the remaining budget", checked.Token.Caps)
		}
		if !r.check("resources", fitsErr) {
			break
		}
		// Created is the normal entry point; Isolated admits nodes
		// re-entering after a thaw or an operator repair.
		current, err := g.states.Current(a.Node)
		switch {
		case err != nil:
			r.check("transition", err)
		case current != lifecycle.Created && current != lifecycle.Isolated:
			r.check("transition", fault.New(fault.AlreadyStarted,
				"node %s is %s, dispatch needs created or isolated", a.Node, current))
		default:
			r.check("transition", nil)
		}

	case AppendRecord:
		var err error
		switch {
		case a.Action == "":
			err = fault.New(fault.PolicyViolation, "external events need an action descriptor")
		case !strings.HasPrefix(a.Action, "external/"):
			err = fault.New(fault.PolicyViolation,
				"external events must use the external/ namespace, got %q", a.Action)
		}
		r.check("policy", err)

	default:
		r.check("policy", fault.New(fault.ValidationRequired, "unknown action type"))
	}

	return r.finish()
}

// resolve looks up a graph without requiring it open. Lifecycle and
// scheduling continue after the structure freezes.
func (g *Gate) resolve(id ref.GraphID) (*graph.Graph, error) {
	return g.graphs.Graph(id)
}

// resolveOpen looks up a graph and requires it open for structural
// mutation.
func (g *Gate) resolveOpen(id ref.GraphID) (*graph.Graph, error) {
	target, err := g.graphs.Graph(id)
	if err != nil {
		return nil, err
	}
	if target.Closed() {
		return nil, fault.New(fault.GraphClosed, "graph %s is closed", id)
	}
	return target, nil
}

// activeNode requires a node to exist and not be deactivated.
func (g *Gate) activeNode(target *graph.Graph, id ref.NodeID) error {
	node, ok := target.Node(id)
	if !ok {
		return fault.New(fault.NodeNotFound, "node %s not in graph %s", id, target.ID())
	}
	if node.Deactivated {
		return fault.New(fault.NodeNotFound, "node %s is deactivated", id)
	}
	return nil
}

// verifiedToken runs the token stage: presence, signature, binding,
// expiry.
func (g *Gate) verifiedToken(r *run, wire []byte, bound ref.NodeID) (token.Checked, bool) {
	if len(wire) == 0 {
		r.check("token", fault.New(fault.TokenRequired, "operation requires a capability token"))
		return token.Checked{}, false
	}
	checked, err := g.tokens.Verify(wire, bound)
	if err != nil {
		r.check("token", err)
		return token.Checked{}, false
	}
	return checked, r.check("token", nil)
}

// legalMove runs the transition stage against the lifecycle table.
func (g *Gate) legalMove(r *run, node ref.NodeID, to lifecycle.State) {
	current, err := g.states.Current(node)
	if err != nil {
		r.check("transition", err)
		return
	}
	if !lifecycle.Legal(current, to) {
		r.check("transition", fault.New(fault.IllegalTransition,
			"no transition from %s to %s", current, to))
		return
	}
	r.check("transition", nil)
}

// capsWithinBudget rejects declarations that could never dispatch
// because they exceed the whole process budget.
func (g *Gate) capsWithinBudget(caps resource.Caps) error {
	if !caps.Within(g.ledger.Budget()) {
		return fault.New(fault.LimitExceeded,
			"caps %s exceed the process budget %s", caps, g.ledger.Budget())
	}
	return nil
}

// PolicySnapshot is the read-only policy projection behind the
// query-policy operation.
type PolicySnapshot struct {
	Ceilings     CeilingPolicy `json:"ceilings"`
	MaxTokenCaps resource.Caps `json:"max_token_caps"`
	Budget       resource.Caps `json:"budget"`
	Committed    resource.Caps `json:"committed"`
	ActiveHolds  int           `json:"active_holds"`
}

// Snapshot captures current policy and resource state. Derived on
// demand; never persisted.
func (g *Gate) Snapshot() PolicySnapshot {
	return PolicySnapshot{
		Ceilings:     g.ceilings,
		MaxTokenCaps: g.maxTokenCaps,
		Budget:       g.ledger.Budget(),
		Committed:    g.ledger.Committed(),
		ActiveHolds:  g.ledger.Holds(),
	}
}

// Availability returns the remaining uncommitted budget.
func (g *Gate) Availability() resource.Caps {
	return g.ledger.Available()
}

// Ledger exposes the gate's resource ledger for the dispatch path,
// which takes and releases holds as nodes start and settle.
func (g *Gate) Ledger() *Ledger {
	return g.ledger
}
