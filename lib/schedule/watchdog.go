// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/bureau-foundation/warden/lib/lifecycle"
)

// watchdog periodically sweeps running entries for nodes that have
// sat in the same lifecycle state longer than the configured grace.
func (s *Scheduler) watchdog(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep freezes every running node whose last state change is older
// than the grace period and interrupts its workload. The freeze is a
// policy action: the worker observes the frozen state and settles the
// entry without overriding it.
func (s *Scheduler) sweep() {
	now := s.clock.Now()

	type stall struct {
		entry *entry
		since time.Duration
	}
	var stalls []stall
	s.mu.Lock()
	for _, e := range s.byNode {
		if e.phase.Load() != phaseRunning {
			continue
		}
		changed, err := s.states.Changed(e.node)
		if err != nil {
			continue
		}
		if since := now.Sub(changed); since > s.grace {
			stalls = append(stalls, stall{entry: e, since: since})
		}
	}
	s.mu.Unlock()
	sort.Slice(stalls, func(i, j int) bool {
		return stalls[i].entry.seq < stalls[j].entry.seq
	})

	for _, st := range stalls {
		e := st.entry
		current, err := s.states.Current(e.node)
		if err != nil || !lifecycle.Legal(current, lifecycle.Frozen) {
			continue
		}
		if _, err := s.states.Force(e.node, lifecycle.Frozen); err != nil {
			// Raced with another policy actor; leave it be.
			continue
		}
		s.appendEvent(e, "watchdog/freeze", "frozen", map[string]string{
			"state":       current.String(),
			"stalled_for": st.since.String(),
		})
		s.logger.Warn("watchdog froze stalled node",
			"node", e.node.String(),
			"state", current.String(),
			"stalled_for", st.since.String())
		e.interruptExecution()
	}
}
