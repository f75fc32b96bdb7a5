// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"

	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/token"
)

// worker consumes dispatched entries until the feed closes.
func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for e := range s.feed {
		s.execute(ctx, e)
	}
}

// execute drives one dispatched entry end to end: lifecycle drive to
// Executing, the isolated workload, then the drive home to Merged.
// Whatever happens, the entry settles and its resource hold returns
// to the budget.
func (s *Scheduler) execute(ctx context.Context, e *entry) {
	defer func() {
		s.gate.Ledger().Release(e.node)
		s.signalPlanner()
	}()

	for _, next := range []lifecycle.State{lifecycle.Isolated, lifecycle.Testing, lifecycle.Executing} {
		current, err := s.states.Current(e.node)
		if err != nil {
			s.abort(e, err)
			return
		}
		if current == next {
			// Re-entry after a thaw: the node already stands here.
			continue
		}
		if err := s.step(e, next); err != nil {
			s.abort(e, err)
			return
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelExec = cancel
	e.mu.Unlock()
	result, err := s.executor.Execute(runCtx, isolation.Request{
		Node:  e.node,
		Token: e.checked.Token,
		Work:  e.work,
	})
	cancel()
	e.mu.Lock()
	e.cancelExec = nil
	e.mu.Unlock()
	if err != nil {
		s.failExecution(e, err)
		return
	}

	for _, next := range []lifecycle.State{lifecycle.Validating, lifecycle.Merged} {
		if err := s.step(e, next); err != nil {
			s.abort(e, err)
			return
		}
	}

	s.appendEvent(e, "schedule/complete", "merged", result.Attrs)
	e.settle(OutcomeMerged, nil)
}

// step runs one gate-validated, token-authorized transition and
// journals it.
func (s *Scheduler) step(e *entry, to lifecycle.State) error {
	report := s.gate.Validate(compliance.Transition{
		Graph: e.graph.ID(),
		Node:  e.node,
		To:    to,
		Wire:  e.wire,
	})
	if !report.Allowed() {
		return report.Err()
	}
	receipt, err := s.states.Transition(e.node, to, e.wire)
	if err != nil {
		return err
	}
	s.appendEvent(e, "state/transition", "ok", map[string]string{
		"from":  receipt.From.String(),
		"to":    receipt.To.String(),
		"token": token.FormatFingerprint(receipt.Fingerprint),
	})
	return nil
}

// abort handles a drive interrupted by outside interference — token
// expiry, an operator transition, a watchdog freeze. The node is
// frozen where the table allows (a frozen node stays frozen) and the
// entry settles escalated.
func (s *Scheduler) abort(e *entry, cause error) {
	current, err := s.states.Current(e.node)
	if err == nil && current == lifecycle.Merged {
		// Someone else drove the node home; accept it.
		e.settle(OutcomeMerged, nil)
		return
	}
	if err == nil && current != lifecycle.Frozen {
		s.freezeByPolicy(e.node)
	}
	s.appendEvent(e, "schedule/abort", faultSlug(cause), map[string]string{
		"detail": cause.Error(),
	})
	s.logger.Warn("schedule drive aborted",
		"node", e.node.String(), "error", cause)
	e.settle(OutcomeEscalated, cause)
}

// failExecution settles an entry whose workload errored. Cap breaches
// freeze the node; other failures escalate it. A node already frozen
// by another policy actor (the watchdog, an operator) keeps its
// freeze, and the journaled response reflects the state the node
// actually lands in.
func (s *Scheduler) failExecution(e *entry, cause error) {
	code, _ := fault.CodeOf(cause)
	target := lifecycle.Escalated
	if code.Escalates() {
		target = lifecycle.Frozen
	}
	current, err := s.states.Current(e.node)
	switch {
	case err != nil:
		// Node gone from the registry; journal and settle anyway.
	case current == lifecycle.Frozen:
		target = lifecycle.Frozen
	case lifecycle.Legal(current, target):
		if _, err := s.states.Force(e.node, target); err != nil {
			s.logger.Warn("policy transition failed",
				"node", e.node.String(), "to", target.String(), "error", err)
		}
	}
	s.appendEvent(e, "schedule/escalate", faultSlug(cause), map[string]string{
		"detail":   cause.Error(),
		"response": target.String(),
	})
	s.logger.Warn("workload failed", "node", e.node.String(), "error", cause)
	e.settle(OutcomeEscalated, cause)
}

// faultSlug names an error for journal Result fields.
func faultSlug(err error) string {
	if code, ok := fault.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}
