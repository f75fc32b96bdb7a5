// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/config"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/lifecycle"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/schedule"
	"github.com/bureau-foundation/warden/lib/token"
)

// Config carries the kernel's construction parameters.
type Config struct {
	// Settings is the parsed configuration. Nil means config.Default().
	Settings *config.Config

	// Public and Private are the token signing keypair. Leave both nil
	// to generate a fresh pair, which suits tests and single-run
	// processes; persistent deployments load one with
	// token.LoadOrGenerateKeypair so tokens survive a restart.
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey

	// Executor runs scheduled workloads. Required.
	Executor isolation.Executor

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Kernel is the authorization kernel: one explicit context value
// holding every component. Construct with New; there is no
// package-level state, so multiple kernels coexist in one process
// without interference.
//
// Every mutating operation follows the same shape: the compliance
// gate validates the proposed action, the owning component applies it
// with its own atomic re-check, and the journal records the outcome
// before the operation returns. Denials are journaled too, with the
// failed check and reason.
type Kernel struct {
	settings *config.Config
	clock    clock.Clock
	logger   *slog.Logger

	graphs   *graphSet
	engine   *token.Engine
	states   *lifecycle.Registry
	journal  *journal.Journal
	gate     *compliance.Gate
	sched    *schedule.Scheduler
	ceilings compliance.CeilingPolicy

	stop      context.CancelFunc
	closeOnce sync.Once
}

// New validates the configuration, assembles the components, and
// starts the scheduler. The caller owns the result and must Close it.
func New(cfg Config) (*Kernel, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("kernel: invalid configuration: %w", err)
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("kernel: config needs an executor")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	public, private := cfg.Public, cfg.Private
	if public == nil && private == nil {
		var err error
		public, private, err = token.GenerateKeypair()
		if err != nil {
			return nil, fmt.Errorf("kernel: generating keypair: %w", err)
		}
	}

	// Validate proved these parse; the accessors cannot fail now.
	ceilings, _ := settings.Ceilings()
	ttl, _ := settings.TokenTTL()
	tokenCaps, _ := settings.TokenCaps()
	budget, _ := settings.ProcessBudget()
	grace, interval, _ := settings.WatchdogTiming()

	engine, err := token.NewEngine(token.EngineConfig{
		Public:  public,
		Private: private,
		Clock:   clk,
		MaxCaps: tokenCaps,
		TTL:     ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	k := &Kernel{
		settings: settings,
		clock:    clk,
		logger:   logger,
		graphs:   newGraphSet(),
		engine:   engine,
		states:   lifecycle.NewRegistry(engine, clk),
		journal:  journal.New(clk),
		ceilings: ceilings,
	}
	k.gate = compliance.NewGate(compliance.Config{
		Graphs:       k.graphs,
		Tokens:       engine,
		States:       k.states,
		Ledger:       compliance.NewLedger(budget),
		Ceilings:     ceilings,
		MaxTokenCaps: tokenCaps,
	})

	sched, err := schedule.New(schedule.Config{
		Gate:     k.gate,
		Graphs:   k.graphs,
		Tokens:   engine,
		States:   k.states,
		Journal:  k.journal,
		Executor: cfg.Executor,
		Clock:    clk,
		Logger:   logger,
		Workers:  settings.Scheduler.Workers,
		Watchdog: schedule.WatchdogConfig{Grace: grace, Interval: interval},
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	k.sched = sched

	runCtx, cancel := context.WithCancel(context.Background())
	k.stop = cancel
	go k.sched.Run(runCtx)

	logger.Info("kernel started",
		"environment", string(settings.Environment),
		"workers", settings.Scheduler.Workers,
		"budget", budget.String(),
		"production_ceiling", ceilings.Production.String(),
		"sandbox_ceiling", ceilings.Sandbox.String())
	return k, nil
}

// Close stops the scheduler and waits for in-flight workloads to
// settle. The journal and every read operation stay usable afterward;
// new schedule admissions fail. Close is idempotent.
func (k *Kernel) Close() {
	k.closeOnce.Do(func() {
		k.stop()
		<-k.sched.Done()
		k.logger.Info("kernel stopped", "journal_events", k.journal.Len())
	})
}

// NewLogger creates the standard warden logger: a JSON handler
// writing to stderr at Info level. It also sets the default slog
// logger so that third-party code using slog.Info etc. gets the same
// handler.
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// graphSet is the kernel's graph registry. It implements
// compliance.GraphSource for the gate and the scheduler. Keeping it
// unexported keeps raw *graph.Graph handles off the kernel's public
// surface: mutations go through kernel operations, where they are
// gated and journaled.
type graphSet struct {
	mu     sync.RWMutex
	graphs map[ref.GraphID]*graph.Graph
}

func newGraphSet() *graphSet {
	return &graphSet{graphs: make(map[ref.GraphID]*graph.Graph)}
}

func (s *graphSet) Graph(id ref.GraphID) (*graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.graphs[id]; ok {
		return g, nil
	}
	return nil, fault.New(fault.GraphNotFound, "graph %s not found", id)
}

func (s *graphSet) add(g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.ID()] = g
}

// deny journals a gate denial and returns its fault. The event's
// action is the gate's, never a caller-supplied string.
func (k *Kernel) deny(graphID ref.GraphID, node ref.NodeID, report compliance.Report) error {
	attrs := map[string]string{
		"check":  report.FailedCheck,
		"detail": report.Detail,
	}
	if report.Failure != 0 {
		attrs["fault"] = report.Failure.String()
	}
	k.journal.Append(journal.Event{
		Graph:  graphID,
		Node:   node,
		Action: report.Action,
		Result: "denied",
		Attrs:  attrs,
	})
	k.logger.Warn("operation denied",
		"action", report.Action,
		"check", report.FailedCheck,
		"detail", report.Detail)
	return report.Err()
}

// refused journals an apply-time rejection: the gate admitted the
// action, but the owning component's atomic re-check turned it away.
func (k *Kernel) refused(graphID ref.GraphID, node ref.NodeID, action string, err error) error {
	attrs := map[string]string{"detail": err.Error()}
	if code, ok := fault.CodeOf(err); ok {
		attrs["fault"] = code.String()
	}
	k.journal.Append(journal.Event{
		Graph:  graphID,
		Node:   node,
		Action: action,
		Result: "denied",
		Attrs:  attrs,
	})
	k.logger.Warn("operation refused", "action", action, "error", err)
	return err
}
