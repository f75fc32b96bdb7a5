// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compliance

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

func TestLedgerHoldAndRelease(t *testing.T) {
	ledger := NewLedger(resource.Caps{CPUTime: time.Hour, TokenBudget: 1000})
	node := ref.NewNodeID()

	caps := resource.Caps{CPUTime: 10 * time.Minute, TokenBudget: 400}
	if err := ledger.Hold(node, caps); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if got := ledger.Committed(); got != caps {
		t.Errorf("Committed = %v, want %v", got, caps)
	}
	if got := ledger.Holds(); got != 1 {
		t.Errorf("Holds = %d, want 1", got)
	}

	ledger.Release(node)
	if got := ledger.Committed(); !got.IsZero() {
		t.Errorf("Committed after release = %v, want zero", got)
	}
	if got := ledger.Holds(); got != 0 {
		t.Errorf("Holds after release = %d, want 0", got)
	}
}

func TestLedgerDoubleHold(t *testing.T) {
	ledger := NewLedger(resource.Caps{TokenBudget: 1000})
	node := ref.NewNodeID()

	if err := ledger.Hold(node, resource.Caps{TokenBudget: 100}); err != nil {
		t.Fatalf("first Hold: %v", err)
	}
	err := ledger.Hold(node, resource.Caps{TokenBudget: 100})
	if !errors.Is(err, fault.LimitExceeded) {
		t.Fatalf("second Hold = %v, want fault.LimitExceeded", err)
	}
	// The failed hold must not change the commitment.
	if got := ledger.Committed(); got.TokenBudget != 100 {
		t.Errorf("Committed.TokenBudget = %d, want 100", got.TokenBudget)
	}
}

func TestLedgerBudgetExceeded(t *testing.T) {
	ledger := NewLedger(resource.Caps{TokenBudget: 1000})

	if err := ledger.Hold(ref.NewNodeID(), resource.Caps{TokenBudget: 900}); err != nil {
		t.Fatalf("Hold within budget: %v", err)
	}

	over := ref.NewNodeID()
	err := ledger.Hold(over, resource.Caps{TokenBudget: 200})
	if !errors.Is(err, fault.LimitExceeded) {
		t.Fatalf("Hold over budget = %v, want fault.LimitExceeded", err)
	}
	if got := ledger.Committed(); got.TokenBudget != 900 {
		t.Errorf("Committed.TokenBudget = %d, want 900 (failed hold must not commit)", got.TokenBudget)
	}

	// The exact remaining amount still fits.
	if err := ledger.Hold(over, resource.Caps{TokenBudget: 100}); err != nil {
		t.Fatalf("Hold of exact remainder: %v", err)
	}
}

func TestLedgerUnboundedDimensions(t *testing.T) {
	// A zero budget field places no bound on that dimension.
	ledger := NewLedger(resource.Caps{TokenBudget: 1000})

	err := ledger.Hold(ref.NewNodeID(), resource.Caps{
		CPUTime:     1000 * time.Hour,
		MemoryBytes: 1 << 40,
		TokenBudget: 500,
	})
	if err != nil {
		t.Fatalf("Hold with unbounded dimensions: %v", err)
	}
}

func TestLedgerFits(t *testing.T) {
	ledger := NewLedger(resource.Caps{TokenBudget: 1000})

	if !ledger.Fits(resource.Caps{TokenBudget: 1000}) {
		t.Error("Fits(1000) = false on empty ledger, want true")
	}
	if err := ledger.Hold(ref.NewNodeID(), resource.Caps{TokenBudget: 700}); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if !ledger.Fits(resource.Caps{TokenBudget: 300}) {
		t.Error("Fits(300) = false with 300 remaining, want true")
	}
	if ledger.Fits(resource.Caps{TokenBudget: 301}) {
		t.Error("Fits(301) = true with 300 remaining, want false")
	}
}

func TestLedgerAvailable(t *testing.T) {
	ledger := NewLedger(resource.Caps{CPUTime: time.Hour, TokenBudget: 1000})

	if err := ledger.Hold(ref.NewNodeID(), resource.Caps{TokenBudget: 250}); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	got := ledger.Available()
	if got.TokenBudget != 750 {
		t.Errorf("Available.TokenBudget = %d, want 750", got.TokenBudget)
	}
	if got.CPUTime != time.Hour {
		t.Errorf("Available.CPUTime = %v, want 1h", got.CPUTime)
	}
}

func TestLedgerReleaseWithoutHold(t *testing.T) {
	ledger := NewLedger(resource.Caps{TokenBudget: 1000})
	ledger.Release(ref.NewNodeID())
	if got := ledger.Committed(); !got.IsZero() {
		t.Errorf("Committed = %v, want zero", got)
	}
}
