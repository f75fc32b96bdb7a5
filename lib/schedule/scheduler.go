// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/token"
)

// DefaultWorkers is the worker pool size when Config.Workers is zero.
const DefaultWorkers = 4

// WatchdogConfig tunes stall detection. Zero values disable the
// watchdog; the kernel's config layer supplies operational defaults.
type WatchdogConfig struct {
	// Grace is how long a dispatched node may go without a lifecycle
	// change before it counts as stalled.
	Grace time.Duration

	// Interval is how often the watchdog sweeps.
	Interval time.Duration
}

// Config carries the scheduler's collaborators.
type Config struct {
	Gate     *compliance.Gate
	Graphs   compliance.GraphSource
	Tokens   compliance.TokenChecker
	States   *lifecycle.Registry
	Journal  *journal.Journal
	Executor isolation.Executor
	Clock    clock.Clock
	Logger   *slog.Logger

	// Workers is the worker pool size. Zero means DefaultWorkers.
	Workers int

	Watchdog WatchdogConfig
}

// entry phases. Pending entries may be cancelled; the planner moves
// entries to running at dispatch, and settle marks them done.
const (
	phasePending uint32 = iota
	phaseRunning
	phaseDone
)

type entry struct {
	id      ref.ScheduleID
	graph   *graph.Graph
	node    ref.NodeID
	wire    []byte
	work    isolation.WorkSpec
	checked token.Checked

	// seq is the node's creation sequence, the dispatch tie-break
	// among simultaneously ready entries.
	seq int

	phase atomic.Uint32

	mu      sync.Mutex
	outcome Outcome
	failure error
	// cancelExec interrupts the in-flight workload; set by the
	// worker for the duration of the executor call.
	cancelExec context.CancelFunc
	done       chan struct{}
}

// interruptExecution cancels the entry's in-flight workload, if any.
func (e *entry) interruptExecution() {
	e.mu.Lock()
	cancel := e.cancelExec
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// settle records the entry's final outcome exactly once and releases
// waiters.
func (e *entry) settle(outcome Outcome, failure error) {
	e.mu.Lock()
	if e.outcome != OutcomePending {
		e.mu.Unlock()
		return
	}
	e.outcome = outcome
	e.failure = failure
	e.mu.Unlock()
	e.phase.Store(phaseDone)
	close(e.done)
}

// state returns the entry's outcome and recorded failure.
func (e *entry) state() (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome, e.failure
}

// Scheduler owns the planner, the worker pool, and the watchdog.
// Construct with New, start with Run.
type Scheduler struct {
	gate     *compliance.Gate
	graphs   compliance.GraphSource
	tokens   compliance.TokenChecker
	states   *lifecycle.Registry
	journal  *journal.Journal
	executor isolation.Executor
	clock    clock.Clock
	logger   *slog.Logger

	workers  int
	grace    time.Duration
	interval time.Duration

	// kick wakes the planner; feed hands ready entries to workers.
	kick chan struct{}
	feed chan *entry
	done chan struct{}

	stopped atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	pending  []*entry
	byHandle map[ref.ScheduleID]*entry
	byNode   map[ref.NodeID]*entry
}

// New builds a scheduler. Every collaborator except Clock and Logger
// is required.
func New(cfg Config) (*Scheduler, error) {
	switch {
	case cfg.Gate == nil:
		return nil, errors.New("schedule: config needs a gate")
	case cfg.Graphs == nil:
		return nil, errors.New("schedule: config needs a graph source")
	case cfg.Tokens == nil:
		return nil, errors.New("schedule: config needs a token checker")
	case cfg.States == nil:
		return nil, errors.New("schedule: config needs a lifecycle registry")
	case cfg.Journal == nil:
		return nil, errors.New("schedule: config needs a journal")
	case cfg.Executor == nil:
		return nil, errors.New("schedule: config needs an executor")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Scheduler{
		gate:     cfg.Gate,
		graphs:   cfg.Graphs,
		tokens:   cfg.Tokens,
		states:   cfg.States,
		journal:  cfg.Journal,
		executor: cfg.Executor,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		workers:  cfg.Workers,
		grace:    cfg.Watchdog.Grace,
		interval: cfg.Watchdog.Interval,
		kick:     make(chan struct{}, 1),
		feed:     make(chan *entry),
		done:     make(chan struct{}),
		byHandle: make(map[ref.ScheduleID]*entry),
		byNode:   make(map[ref.NodeID]*entry),
	}, nil
}

// Schedule admits a node for execution: gate validation (Dispatch
// action), then an entry registered and queued for the planner.
// Returns the entry's handle. A node may hold at most one unsettled
// entry at a time.
func (s *Scheduler) Schedule(graphID ref.GraphID, node ref.NodeID, wire []byte, work isolation.WorkSpec) (Handle, error) {
	if s.stopped.Load() {
		return Handle{}, fault.New(fault.PolicyViolation, "scheduler is stopped")
	}

	report := s.gate.Validate(compliance.Dispatch{Graph: graphID, Node: node, Wire: wire})
	if !report.Allowed() {
		return Handle{}, report.Err()
	}

	target, err := s.graphs.Graph(graphID)
	if err != nil {
		return Handle{}, err
	}
	record, ok := target.Node(node)
	if !ok {
		return Handle{}, fault.New(fault.NodeNotFound, "node %s not in graph %s", node, graphID)
	}
	checked, err := s.tokens.Verify(wire, node)
	if err != nil {
		return Handle{}, err
	}

	e := &entry{
		id:      ref.NewScheduleID(),
		graph:   target,
		node:    node,
		wire:    append([]byte(nil), wire...),
		work:    work,
		checked: checked,
		seq:     record.Sequence,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if existing := s.byNode[node]; existing != nil {
		if outcome, _ := existing.state(); !outcome.Settled() {
			s.mu.Unlock()
			return Handle{}, fault.New(fault.AlreadyStarted,
				"node %s already has an active schedule entry", node)
		}
	}
	s.byHandle[e.id] = e
	s.byNode[node] = e
	s.pending = append(s.pending, e)
	s.mu.Unlock()

	// Journal the admission before waking the planner, so the entry's
	// first record always precedes its dispatch record.
	s.appendEvent(e, "schedule/admit", "ok", map[string]string{"entry": e.id.String()})
	s.signalPlanner()
	return Handle{id: e.id, node: node}, nil
}

// Cancel withdraws a not-yet-dispatched entry. Fails with
// fault.AlreadyStarted once the planner has handed the entry to a
// worker (or it has already settled).
func (s *Scheduler) Cancel(h Handle) error {
	s.mu.Lock()
	e := s.byHandle[h.id]
	s.mu.Unlock()
	if e == nil {
		return fault.New(fault.NodeNotFound, "unknown schedule handle %s", h.id)
	}

	if !e.phase.CompareAndSwap(phasePending, phaseDone) {
		return fault.New(fault.AlreadyStarted, "entry %s already dispatched", h.id)
	}

	s.mu.Lock()
	s.removePendingLocked(e)
	s.mu.Unlock()

	s.appendEvent(e, "schedule/cancel", "cancelled", nil)
	e.settle(OutcomeCancelled, nil)
	return nil
}

// Status returns the entry's outcome; OutcomePending until it
// settles.
func (s *Scheduler) Status(h Handle) (Outcome, error) {
	s.mu.Lock()
	e := s.byHandle[h.id]
	s.mu.Unlock()
	if e == nil {
		return OutcomePending, fault.New(fault.NodeNotFound, "unknown schedule handle %s", h.id)
	}
	outcome, _ := e.state()
	return outcome, nil
}

// WaitForCompletion blocks until the node's most recent schedule
// entry settles, returning its outcome. A timeout greater than zero
// bounds the wait (fault.WaitTimeout on expiry); zero or negative
// waits indefinitely. Waiting never blocks scheduling activity.
func (s *Scheduler) WaitForCompletion(node ref.NodeID, timeout time.Duration) (Outcome, error) {
	s.mu.Lock()
	e := s.byNode[node]
	s.mu.Unlock()
	if e == nil {
		return OutcomePending, fault.New(fault.NodeNotFound, "node %s has never been scheduled", node)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		expired = s.clock.After(timeout)
	}
	select {
	case <-e.done:
		outcome, _ := e.state()
		return outcome, nil
	case <-expired:
		return OutcomePending, fault.New(fault.WaitTimeout,
			"node %s did not settle within %v", node, timeout)
	}
}

// Run operates the scheduler until ctx is cancelled: it starts the
// worker pool and the watchdog, then plans until shutdown. On
// cancellation it drains in-flight workloads (their executor contexts
// are cancelled and the entries escalate), cancels still-pending
// entries, and closes Done.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	for range s.workers {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	if s.interval > 0 && s.grace > 0 {
		s.wg.Add(1)
		go s.watchdog(ctx)
	}

	s.planLoop(ctx)
	s.stopped.Store(true)
	close(s.feed)
	s.wg.Wait()
	s.drainPending()
}

// Done closes after Run has fully exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Poke re-evaluates pending entries. Call it after lifecycle changes
// made outside the scheduler — an operator thaw, a forced merge — so
// entries waiting on those nodes notice promptly.
func (s *Scheduler) Poke() {
	s.signalPlanner()
}

// signalPlanner wakes the planner without blocking; a pending wakeup
// already covers this one.
func (s *Scheduler) signalPlanner() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) planLoop(ctx context.Context) {
	for {
		s.plan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}
	}
}

// plan scans pending entries: poisoned ones are frozen and settled,
// ready ones leave the queue and go to the workers in creation
// sequence order. dispatch re-queues an entry whose resource hold
// does not fit, so it retries when a settle releases budget.
func (s *Scheduler) plan(ctx context.Context) {
	type poisoning struct {
		entry *entry
		cause poison
	}
	var ready []*entry
	var poisoned []poisoning

	s.mu.Lock()
	var remaining []*entry
	for _, e := range s.pending {
		if e.phase.Load() != phasePending {
			continue
		}
		decision, cause := s.evaluateLocked(e)
		switch decision {
		case depsPoisoned:
			poisoned = append(poisoned, poisoning{entry: e, cause: cause})
		case depsReady:
			ready = append(ready, e)
		default:
			remaining = append(remaining, e)
		}
	}
	s.pending = remaining
	s.mu.Unlock()

	for _, p := range poisoned {
		s.poison(p.entry, p.cause)
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
	for _, e := range ready {
		s.dispatch(ctx, e)
	}
}

// depDecision is the planner's verdict on one pending entry.
type depDecision int

const (
	depsWaiting depDecision = iota
	depsReady
	depsPoisoned
)

// poison names the upstream failure that kills a dependent.
type poison struct {
	upstream ref.NodeID
	reason   string
}

// evaluateLocked decides whether a pending entry can dispatch. Must
// be called with s.mu held (it reads byNode for upstream outcomes).
func (s *Scheduler) evaluateLocked(e *entry) (depDecision, poison) {
	deps, err := e.graph.Dependencies(e.node)
	if err != nil {
		return depsWaiting, poison{}
	}
	for _, dep := range deps {
		record, ok := e.graph.Node(dep)
		if !ok {
			return depsWaiting, poison{}
		}
		current, err := s.states.Current(dep)
		if err != nil {
			// Dependency not yet admitted to the lifecycle; wait.
			return depsWaiting, poison{}
		}
		switch {
		case current == lifecycle.Merged:
			// Satisfied, even if since deactivated.
		case current == lifecycle.Escalated:
			return depsPoisoned, poison{upstream: dep, reason: "dependency escalated"}
		case record.Deactivated:
			// Deactivated before producing output: the output will
			// never exist.
			return depsPoisoned, poison{upstream: dep, reason: "dependency deactivated"}
		case current == lifecycle.Frozen:
			if upstream := s.byNode[dep]; upstream != nil {
				if outcome, _ := upstream.state(); outcome == OutcomePoisoned {
					return depsPoisoned, poison{upstream: dep, reason: "dependency poisoned"}
				}
			}
			// Operator freeze: the dependency may thaw and still
			// merge, so the dependent waits.
			return depsWaiting, poison{}
		default:
			return depsWaiting, poison{}
		}
	}
	return depsReady, poison{}
}

// poison freezes a dependent that can never run and settles it.
func (s *Scheduler) poison(e *entry, cause poison) {
	if !e.phase.CompareAndSwap(phasePending, phaseDone) {
		return
	}
	s.freezeByPolicy(e.node)
	failure := fault.New(fault.PolicyViolation,
		"node %s poisoned: %s (%s)", e.node, cause.reason, cause.upstream)
	s.appendEvent(e, "schedule/poison", "frozen", map[string]string{
		"upstream": cause.upstream.String(),
		"reason":   cause.reason,
	})
	s.logger.Warn("schedule entry poisoned",
		"node", e.node.String(),
		"upstream", cause.upstream.String(),
		"reason", cause.reason)
	e.settle(OutcomePoisoned, failure)
	s.signalPlanner()
}

// dispatch takes the resource hold and hands a ready entry to the
// worker pool.
func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	ledger := s.gate.Ledger()
	if err := ledger.Hold(e.node, e.checked.Token.Caps); err != nil {
		// Budget contention: the entry stays queued and retries when
		// a settle releases resources.
		s.mu.Lock()
		s.pending = append(s.pending, e)
		s.mu.Unlock()
		s.logger.Debug("dispatch deferred, budget exhausted",
			"node", e.node.String(), "error", err)
		return
	}
	if !e.phase.CompareAndSwap(phasePending, phaseRunning) {
		// Cancelled between the scan and here.
		ledger.Release(e.node)
		return
	}
	s.appendEvent(e, "schedule/dispatch", "ok", nil)
	select {
	case s.feed <- e:
	case <-ctx.Done():
		// Shutdown while handing off: put the entry back so the
		// drain cancels it.
		e.phase.Store(phasePending)
		ledger.Release(e.node)
		s.mu.Lock()
		s.pending = append(s.pending, e)
		s.mu.Unlock()
	}
}

// drainPending cancels entries never dispatched before shutdown.
func (s *Scheduler) drainPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		if !e.phase.CompareAndSwap(phasePending, phaseDone) {
			continue
		}
		s.appendEvent(e, "schedule/cancel", "shutdown", nil)
		e.settle(OutcomeCancelled, nil)
	}
}

// removePendingLocked drops an entry from the pending queue. Must be
// called with s.mu held.
func (s *Scheduler) removePendingLocked(target *entry) {
	for i, e := range s.pending {
		if e == target {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// freezeByPolicy moves a node to Frozen through the kernel-policy
// path where the transition table allows it.
func (s *Scheduler) freezeByPolicy(node ref.NodeID) {
	current, err := s.states.Current(node)
	if err != nil || !lifecycle.Legal(current, lifecycle.Frozen) {
		return
	}
	if _, err := s.states.Force(node, lifecycle.Frozen); err != nil {
		s.logger.Warn("policy freeze failed", "node", node.String(), "error", err)
	}
}

// appendEvent journals one scheduler action for an entry.
func (s *Scheduler) appendEvent(e *entry, action, result string, attrs map[string]string) {
	s.journal.Append(journal.Event{
		Graph:       e.graph.ID(),
		Node:        e.node,
		Level:       uint8(e.checked.Token.Level),
		ProfileHash: e.checked.Token.ProfileHash,
		Action:      action,
		Result:      result,
		Attrs:       attrs,
	})
}
