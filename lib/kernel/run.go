// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"time"

	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/schedule"
)

// Schedule admits a node for dependency-ordered execution under the
// authority of a capability token. The node dispatches once every
// dependency has merged and its resource hold fits the budget; the
// returned handle tracks the entry. A node holds at most one
// unsettled entry at a time.
func (k *Kernel) Schedule(graphID ref.GraphID, node ref.NodeID, wire []byte, work isolation.WorkSpec) (schedule.Handle, error) {
	h, err := k.sched.Schedule(graphID, node, wire, work)
	if err != nil {
		return schedule.Handle{}, k.refused(graphID, node, "schedule/admit", err)
	}
	return h, nil
}

// Cancel withdraws a schedule entry that has not yet dispatched.
// Fails with fault.AlreadyStarted once a worker holds the entry.
func (k *Kernel) Cancel(h schedule.Handle) error {
	if err := k.sched.Cancel(h); err != nil {
		return k.refused(ref.GraphID{}, h.Node(), "schedule/cancel", err)
	}
	return nil
}

// ScheduleStatus returns the entry's outcome, OutcomePending until it
// settles.
func (k *Kernel) ScheduleStatus(h schedule.Handle) (schedule.Outcome, error) {
	return k.sched.Status(h)
}

// WaitForCompletion blocks until the node's most recent schedule
// entry settles and returns its outcome. A positive timeout bounds
// the wait with fault.WaitTimeout; zero waits indefinitely. Waiting
// never blocks scheduling activity.
func (k *Kernel) WaitForCompletion(node ref.NodeID, timeout time.Duration) (schedule.Outcome, error) {
	return k.sched.WaitForCompletion(node, timeout)
}
