// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test exercises warden end to end through the
// public kernel surface: graphs, tokens, lifecycle, scheduling,
// journal export, and the audit archive working together the way an
// embedding program drives them. Everything runs in-process on a fake
// clock — no network, no subprocesses, no real time.
//
// The package-level tests under lib/ pin each component's contract in
// isolation; the journeys here pin the seams between them.
package integration_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/config"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/kernel"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/schedule"
	"github.com/bureau-foundation/warden/lib/testutil"
	"github.com/bureau-foundation/warden/lib/token"
)

// waitPatience bounds every real-time wait in this package. Generous
// so loaded CI machines do not flake; passing tests finish long
// before it.
const waitPatience = 10 * time.Second

var journeyStart = time.Date(2026, time.June, 3, 10, 0, 0, 0, time.UTC)

// workCaps fits comfortably inside the default per-token maxima and
// the default process budget.
var workCaps = resource.Caps{CPUTime: 10 * time.Minute, TokenBudget: 50_000}

// stack is a deployed warden in miniature: one kernel on a fake clock
// with an in-process executor.
type stack struct {
	kernel *kernel.Kernel
	clock  *clock.FakeClock
}

// newStack assembles a stack with the standard journey executor: it
// merges every workload, echoing the payload as output, except kind
// "fault-injection", which fails with the payload as the error
// message. Nil settings mean defaults with the watchdog disabled.
func newStack(t *testing.T, settings *config.Config) *stack {
	t.Helper()
	return newStackWithHandler(t, settings, func(ctx context.Context, req isolation.Request) (isolation.Result, error) {
		if req.Work.Kind == "fault-injection" {
			return isolation.Result{}, errors.New(string(req.Work.Payload))
		}
		return isolation.Result{Output: req.Work.Payload}, nil
	})
}

func newStackWithHandler(t *testing.T, settings *config.Config, handler isolation.Handler) *stack {
	t.Helper()
	if settings == nil {
		settings = journeySettings()
	}
	fc := clock.Fake(journeyStart)
	executor, err := isolation.NewInProcess(handler, fc)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	k, err := kernel.New(kernel.Config{
		Settings: settings,
		Executor: executor,
		Clock:    fc,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("new kernel: %v", err)
	}
	t.Cleanup(k.Close)
	return &stack{kernel: k, clock: fc}
}

// journeySettings disables the watchdog so the journeys control every
// timer on the fake clock.
func journeySettings() *config.Config {
	cfg := config.Default()
	cfg.Scheduler.Watchdog = config.WatchdogConfig{}
	return cfg
}

// --- Graph and Token Helpers ---

func (s *stack) newGraph(t *testing.T, kind graph.Kind) ref.GraphID {
	t.Helper()
	id, err := s.kernel.CreateGraph(kind)
	if err != nil {
		t.Fatalf("create %s graph: %v", kind, err)
	}
	return id
}

func (s *stack) newNode(t *testing.T, graphID ref.GraphID, label string) ref.NodeID {
	t.Helper()
	node, err := s.kernel.AddNode(graphID, graph.NodeSpec{Label: label, Caps: workCaps})
	if err != nil {
		t.Fatalf("add node %q: %v", label, err)
	}
	return node
}

func (s *stack) dependOn(t *testing.T, graphID ref.GraphID, from, to ref.NodeID) {
	t.Helper()
	if err := s.kernel.AddEdge(graphID, from, to); err != nil {
		t.Fatalf("add edge %s -> %s: %v", from, to, err)
	}
}

func (s *stack) issueAt(t *testing.T, graphID ref.GraphID, node ref.NodeID, level token.Level) token.Issued {
	t.Helper()
	issued, err := s.kernel.IssueToken(kernel.TokenRequest{
		Graph: graphID,
		Node:  node,
		Level: level,
		Caps:  workCaps,
	})
	if err != nil {
		t.Fatalf("issue %s token for %s: %v", level, node, err)
	}
	return issued
}

// --- Scheduling Helpers ---

func (s *stack) admit(t *testing.T, graphID ref.GraphID, node ref.NodeID, wire []byte, work isolation.WorkSpec) schedule.Handle {
	t.Helper()
	h, err := s.kernel.Schedule(graphID, node, wire, work)
	if err != nil {
		t.Fatalf("schedule node %s: %v", node, err)
	}
	return h
}

// settle blocks until the node's schedule entry reaches a final
// outcome, bounded by real time so a wedged scheduler fails the test
// instead of hanging it.
func (s *stack) settle(t *testing.T, node ref.NodeID) schedule.Outcome {
	t.Helper()
	type settled struct {
		outcome schedule.Outcome
		err     error
	}
	results := make(chan settled, 1)
	go func() {
		outcome, err := s.kernel.WaitForCompletion(node, 0)
		results <- settled{outcome: outcome, err: err}
	}()
	r := testutil.RequireReceive(t, results, waitPatience, "waiting for node %s to settle", node)
	if r.err != nil {
		t.Fatalf("wait for completion of %s: %v", node, r.err)
	}
	return r.outcome
}

func (s *stack) requireSettled(t *testing.T, node ref.NodeID, want schedule.Outcome) {
	t.Helper()
	if got := s.settle(t, node); got != want {
		t.Fatalf("node %s outcome = %s, want %s", node, got, want)
	}
}

func (s *stack) requireState(t *testing.T, node ref.NodeID, want lifecycle.State) {
	t.Helper()
	got, err := s.kernel.CurrentState(node)
	if err != nil {
		t.Fatalf("current state of %s: %v", node, err)
	}
	if got != want {
		t.Fatalf("node %s state = %s, want %s", node, got, want)
	}
}

// --- Journal Helpers ---

// recordsOf returns journal events matching an action and result, in
// chain order.
func (s *stack) recordsOf(action, result string) []journal.Event {
	var out []journal.Event
	for _, e := range s.kernel.Events() {
		if e.Action == action && e.Result == result {
			out = append(out, e)
		}
	}
	return out
}

// requireIntact fails the test unless the kernel's full history
// verifies.
func (s *stack) requireIntact(t *testing.T) journal.IntegrityReport {
	t.Helper()
	report := s.kernel.VerifyIntegrity()
	if !report.Intact {
		t.Fatalf("journal broken at event %d: %s", report.BrokenAt, report.Reason)
	}
	return report
}
