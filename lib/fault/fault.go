// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import "fmt"

// Code identifies one failure condition. Codes are stable across
// releases — they appear in journal events and operator tooling — and
// implement error so that errors.Is(err, fault.SomeCode) matches a
// wrapped *Fault.
type Code int

const (
	// Structural faults: the execution graph would become invalid.

	// CycleDetected means an edge insertion would create a cycle.
	CycleDetected Code = iota + 1

	// SelfLoop means an edge's source and target are the same node.
	SelfLoop

	// NodeNotFound means a referenced node does not exist.
	NodeNotFound

	// GraphNotFound means a referenced graph does not exist.
	GraphNotFound

	// GraphClosed means a structural mutation was attempted on a
	// closed graph.
	GraphClosed

	// Authorization faults: a capability token failed a check.

	// CeilingExceeded means a token was requested above the autonomy
	// ceiling of the target's graph kind.
	CeilingExceeded

	// TokenExpired means the token's expiry time has passed.
	TokenExpired

	// TokenMismatch means the token is bound to a different node than
	// the one it was presented for.
	TokenMismatch

	// ElevationForbidden means a downgrade requested a level above
	// the token's current level.
	ElevationForbidden

	// InvalidSignature means the token's signature does not verify.
	InvalidSignature

	// Lifecycle faults: a node state change was rejected.

	// IllegalTransition means the requested state change is not an
	// edge of the lifecycle transition table.
	IllegalTransition

	// TransitionInProgress means a concurrent transition committed
	// first; the observed starting state is stale.
	TransitionInProgress

	// Compliance faults: the gate rejected an operation.

	// TokenRequired means a guarded operation was attempted without a
	// capability token.
	TokenRequired

	// ValidationRequired means an operation needs a pre-flight
	// validation that has not been performed.
	ValidationRequired

	// PolicyViolation means the operation is structurally sound but
	// forbidden by current policy.
	PolicyViolation

	// Resource faults: a declared or configured resource bound was hit.

	// LimitExceeded means requested capabilities exceed the configured
	// per-token maxima.
	LimitExceeded

	// CapExceeded means an admitted workload would exceed, or has
	// exceeded, its capability allocation.
	CapExceeded

	// Audit faults: the event log rejected or detected something.

	// Immutable means an attempt was made to modify recorded history.
	Immutable

	// IntegrityViolation means the event log's hash chain does not
	// verify.
	IntegrityViolation

	// Scheduling faults: the dispatcher rejected a request.

	// AlreadyStarted means a cancellation arrived after dispatch.
	AlreadyStarted

	// WaitTimeout means a completion wait elapsed before the node
	// settled.
	WaitTimeout
)

// Category groups codes by the component domain that raises them.
type Category int

const (
	Structural Category = iota + 1
	Authorization
	Lifecycle
	Compliance
	Resource
	Audit
	Scheduling
)

// String returns the category's lowercase name.
func (c Category) String() string {
	switch c {
	case Structural:
		return "structural"
	case Authorization:
		return "authorization"
	case Lifecycle:
		return "lifecycle"
	case Compliance:
		return "compliance"
	case Resource:
		return "resource"
	case Audit:
		return "audit"
	case Scheduling:
		return "scheduling"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// traits are the fixed properties of a code. Recoverable means the
// caller can correct its input and retry. Integrity marks evidence of
// tampering or forgery: a wrapping system must refuse to keep
// operating on this kernel, and the kernel itself never suppresses
// these. Escalating means the kernel freezes the affected node and
// emits an escalation event instead of merely returning the fault.
type traits struct {
	category    Category
	slug        string
	recoverable bool
	integrity   bool
	escalates   bool
}

var codeTraits = map[Code]traits{
	CycleDetected:        {Structural, "cycle-detected", true, false, false},
	SelfLoop:             {Structural, "self-loop", true, false, false},
	NodeNotFound:         {Structural, "node-not-found", true, false, false},
	GraphNotFound:        {Structural, "graph-not-found", true, false, false},
	GraphClosed:          {Structural, "graph-closed", true, false, false},
	CeilingExceeded:      {Authorization, "ceiling-exceeded", true, false, false},
	TokenExpired:         {Authorization, "token-expired", true, false, false},
	TokenMismatch:        {Authorization, "token-mismatch", true, false, false},
	ElevationForbidden:   {Authorization, "elevation-forbidden", true, false, false},
	InvalidSignature:     {Authorization, "invalid-signature", false, true, false},
	IllegalTransition:    {Lifecycle, "illegal-transition", true, false, false},
	TransitionInProgress: {Lifecycle, "transition-in-progress", true, false, false},
	TokenRequired:        {Compliance, "token-required", true, false, false},
	ValidationRequired:   {Compliance, "validation-required", true, false, false},
	PolicyViolation:      {Compliance, "policy-violation", true, false, false},
	LimitExceeded:        {Resource, "limit-exceeded", true, false, false},
	CapExceeded:          {Resource, "cap-exceeded", false, false, true},
	Immutable:            {Audit, "immutable", false, false, false},
	IntegrityViolation:   {Audit, "integrity-violation", false, true, false},
	AlreadyStarted:       {Scheduling, "already-started", false, false, false},
	WaitTimeout:          {Scheduling, "wait-timeout", true, false, false},
}

// String returns the code's stable slug (e.g., "cycle-detected").
// Slugs appear in journal events and never change meaning.
func (c Code) String() string {
	if t, ok := codeTraits[c]; ok {
		return t.slug
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error implements error so codes work as errors.Is targets.
func (c Code) Error() string { return c.String() }

// Category returns the component domain the code belongs to.
func (c Code) Category() Category { return codeTraits[c].category }

// Recoverable reports whether the caller can correct its input and
// retry the operation.
func (c Code) Recoverable() bool { return codeTraits[c].recoverable }

// Integrity reports whether the code is evidence of tampering or
// forgery. Integrity faults are never locally suppressed; a wrapping
// system observing one should stop consuming the kernel.
func (c Code) Integrity() bool { return codeTraits[c].integrity }

// Escalates reports whether the kernel responds to this code by
// freezing the affected node and emitting an escalation event.
func (c Code) Escalates() bool { return codeTraits[c].escalates }

// MarshalText implements encoding.TextMarshaler: codes serialize as
// their slug. The zero code serializes as empty, meaning "no fault".
func (c Code) MarshalText() ([]byte, error) {
	if c == 0 {
		return nil, nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = 0
		return nil
	}
	parsed, err := ParseCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// bySlug is the reverse of codeTraits, for parsing.
var bySlug = func() map[string]Code {
	m := make(map[string]Code, len(codeTraits))
	for code, t := range codeTraits {
		m[t.slug] = code
	}
	return m
}()

// ParseCode resolves a slug ("cycle-detected") back to its Code.
func ParseCode(slug string) (Code, error) {
	if code, ok := bySlug[slug]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown fault code %q", slug)
}

// Fault is a concrete failure: a code plus occurrence detail. All
// warden components return *Fault (as error) for domain failures.
type Fault struct {
	// Code is the stable failure condition.
	Code Code

	// Detail describes this specific occurrence for humans. It is
	// free-form and not part of any stability contract.
	Detail string
}

// New constructs a fault with a formatted detail string.
func New(code Code, format string, args ...any) *Fault {
	return &Fault{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Error returns "slug: detail", or just the slug when there is no
// detail.
func (f *Fault) Error() string {
	if f.Detail == "" {
		return f.Code.String()
	}
	return f.Code.String() + ": " + f.Detail
}

// Unwrap exposes the code so errors.Is(err, fault.SomeCode) matches.
func (f *Fault) Unwrap() error { return f.Code }

// CodeOf extracts the fault code from an error chain. Returns zero
// (and false) when the chain contains no warden fault.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		switch e := err.(type) {
		case *Fault:
			return e.Code, true
		case Code:
			return e, true
		}
		switch e := err.(type) {
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return 0, false
		}
	}
	return 0, false
}
