// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compliance

import (
	"sync"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

// Ledger tracks the process-wide resource budget against the caps
// committed to in-flight dispatches. Holds are taken when a node is
// handed to the isolation layer and released when it settles; the
// ledger never meters actual consumption, only commitments.
type Ledger struct {
	budget resource.Caps

	mu        sync.Mutex
	committed resource.Caps
	holds     map[ref.NodeID]resource.Caps
}

// NewLedger builds a ledger with the given process budget. Zero
// budget fields are unbounded.
func NewLedger(budget resource.Caps) *Ledger {
	return &Ledger{
		budget: budget,
		holds:  make(map[ref.NodeID]resource.Caps),
	}
}

// Budget returns the configured process-wide budget.
func (l *Ledger) Budget() resource.Caps { return l.budget }

// Hold commits caps for a node. Fails with fault.LimitExceeded when
// the commitment would not fit in the remaining budget, or when the
// node already holds resources; state is unchanged on failure.
func (l *Ledger) Hold(node ref.NodeID, caps resource.Caps) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.holds[node]; held {
		return fault.New(fault.LimitExceeded, "node %s already holds resources", node)
	}
	next := l.committed.Add(caps)
	if !next.Within(l.budget) {
		return fault.New(fault.LimitExceeded,
			"hold %s would exceed budget %s (committed %s)", caps, l.budget, l.committed)
	}
	l.holds[node] = caps
	l.committed = next
	return nil
}

// Release returns a node's hold to the budget. Releasing a node
// without a hold is a no-op.
func (l *Ledger) Release(node ref.NodeID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	caps, held := l.holds[node]
	if !held {
		return
	}
	delete(l.holds, node)
	l.committed = l.committed.Minus(caps)
}

// Committed returns the sum of all current holds.
func (l *Ledger) Committed() resource.Caps {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed
}

// Fits reports whether committing caps now would stay within the
// budget. This is the advisory form of Hold, used for pre-flight
// checks; Hold re-evaluates at commit time and is authoritative.
func (l *Ledger) Fits(caps resource.Caps) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed.Add(caps).Within(l.budget)
}

// Available returns budget minus committed, saturating at zero. This
// is a reporting projection: a zero field can mean either an
// unbounded budget or an exhausted one, so admission decisions use
// Fits and Hold, never this.
func (l *Ledger) Available() resource.Caps {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget.Minus(l.committed)
}

// Holds returns the number of nodes currently holding resources.
func (l *Ledger) Holds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holds)
}
