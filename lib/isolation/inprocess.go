// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package isolation

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/fault"
)

// Handler is the function an InProcess executor runs for each
// workload. Handlers must honor ctx cancellation: in-process
// isolation is cooperative and cannot preempt a handler that ignores
// its context.
type Handler func(ctx context.Context, req Request) (Result, error)

// InProcess runs workloads as plain function calls in the kernel's
// own process. It approximates the CPU-time cap as a wall-clock
// deadline: when the cap elapses before the handler returns, Execute
// cancels the handler's context and reports fault.CapExceeded. Suited
// to low autonomy levels and tests; anything that needs a real
// security boundary belongs in an external process executor.
type InProcess struct {
	handler Handler
	clock   clock.Clock
}

// NewInProcess builds an executor around a handler. A nil clk uses
// the real clock.
func NewInProcess(handler Handler, clk clock.Clock) (*InProcess, error) {
	if handler == nil {
		return nil, errors.New("isolation: handler must not be nil")
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &InProcess{handler: handler, clock: clk}, nil
}

// Execute implements Executor. A zero CPU-time cap means the workload
// runs unbounded.
func (e *InProcess) Execute(ctx context.Context, req Request) (Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	// Buffered so a handler finishing after a cap breach does not
	// leak its goroutine on the send.
	done := make(chan outcome, 1)
	go func() {
		result, err := e.handler(runCtx, req)
		done <- outcome{result: result, err: err}
	}()

	var expired <-chan time.Time
	if allowance := req.Token.Caps.CPUTime; allowance > 0 {
		expired = e.clock.After(allowance)
	}

	select {
	case out := <-done:
		return out.result, out.err
	case <-expired:
		cancel()
		return Result{}, fault.New(fault.CapExceeded,
			"node %s exceeded its %v execution allowance", req.Node, req.Token.Caps.CPUTime)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
