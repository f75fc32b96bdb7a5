// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"fmt"

	"github.com/bureau-foundation/warden/lib/ref"
)

// Outcome is how a schedule entry ended.
type Outcome uint8

const (
	// OutcomePending is the zero value: the entry has not settled.
	OutcomePending Outcome = iota

	// OutcomeMerged means the node executed and merged.
	OutcomeMerged

	// OutcomeEscalated means the entry failed after dispatch: the
	// workload errored, breached a cap, or the lifecycle drive was
	// interrupted. The node was escalated or frozen by policy; the
	// journal records which.
	OutcomeEscalated

	// OutcomePoisoned means the entry never executed because an
	// upstream dependency failed. The node was frozen by kernel
	// policy; thaw and reschedule it after repairing the upstream.
	OutcomePoisoned

	// OutcomeCancelled means the entry was withdrawn before dispatch.
	OutcomeCancelled
)

// String returns the outcome's lowercase name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeMerged:
		return "merged"
	case OutcomeEscalated:
		return "escalated"
	case OutcomePoisoned:
		return "poisoned"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Settled reports whether the entry has reached a final outcome.
func (o Outcome) Settled() bool { return o != OutcomePending }

// Handle identifies one schedule entry.
type Handle struct {
	id   ref.ScheduleID
	node ref.NodeID
}

// ID returns the entry's schedule identifier.
func (h Handle) ID() ref.ScheduleID { return h.id }

// Node returns the node the entry schedules.
func (h Handle) Node() ref.NodeID { return h.node }

// IsZero reports whether the handle is the zero value.
func (h Handle) IsZero() bool { return h.id.IsZero() }
