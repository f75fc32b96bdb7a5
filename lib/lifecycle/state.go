// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
)

// State is a node's position in its lifecycle. The zero value is
// Created: every node starts there when admitted to the registry.
type State uint8

const (
	// Created: admitted to a graph, not yet prepared for work.
	Created State = iota
	// Isolated: execution environment prepared, work not started.
	Isolated
	// Testing: preconditions and checks running inside isolation.
	Testing
	// Executing: the node's work is running.
	Executing
	// Validating: work finished, output under review.
	Validating
	// Merged: output accepted. Terminal.
	Merged
	// Escalated: progress stopped pending outside intervention.
	Escalated
	// Frozen: execution blocked by policy. Reversible.
	Frozen
)

var stateNames = [...]string{
	Created:    "created",
	Isolated:   "isolated",
	Testing:    "testing",
	Executing:  "executing",
	Validating: "validating",
	Merged:     "merged",
	Escalated:  "escalated",
	Frozen:     "frozen",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseState converts a state name into a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if name == n {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Settled reports whether the node's scheduled run is over: either
// the output was accepted or progress stopped pending intervention.
// The scheduler releases waiters when a node settles.
func (s State) Settled() bool {
	return s == Merged || s == Escalated
}

// transitions is the static transition table: the complete set of
// legal lifecycle moves. Every transition path consults this table;
// nothing else decides legality.
var transitions = map[State][]State{
	Created:    {Isolated, Frozen},
	Isolated:   {Testing, Frozen},
	Testing:    {Executing, Escalated, Frozen},
	Executing:  {Validating, Escalated, Frozen},
	Validating: {Merged, Escalated, Frozen},
	Merged:     nil,
	Escalated:  {Isolated, Frozen},
	Frozen:     {Isolated, Escalated},
}

// Legal reports whether the table permits moving from one state to
// another.
func Legal(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Allowed returns the states reachable from s in one legal
// transition. The result is a copy in table order.
func Allowed(s State) []State {
	next := transitions[s]
	if len(next) == 0 {
		return nil
	}
	out := make([]State, len(next))
	copy(out, next)
	return out
}
