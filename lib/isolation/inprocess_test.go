// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package isolation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/testutil"
	"github.com/bureau-foundation/warden/lib/token"
)

var testStart = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func testRequest(caps resource.Caps) Request {
	return Request{
		Node:  ref.NewNodeID(),
		Token: token.Token{Node: ref.NewNodeID(), Caps: caps},
		Work:  WorkSpec{Kind: "test", Payload: []byte("payload")},
	}
}

func TestInProcessSuccess(t *testing.T) {
	fc := clock.Fake(testStart)
	executor, err := NewInProcess(func(ctx context.Context, req Request) (Result, error) {
		return Result{Output: append([]byte("ran: "), req.Work.Payload...)}, nil
	}, fc)
	if err != nil {
		t.Fatalf("NewInProcess: %v", err)
	}

	result, err := executor.Execute(context.Background(), testRequest(resource.Caps{CPUTime: time.Minute}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := string(result.Output); got != "ran: payload" {
		t.Errorf("Output = %q, want %q", got, "ran: payload")
	}
}

func TestInProcessHandlerError(t *testing.T) {
	fc := clock.Fake(testStart)
	boom := errors.New("workload failed")
	executor, err := NewInProcess(func(ctx context.Context, req Request) (Result, error) {
		return Result{}, boom
	}, fc)
	if err != nil {
		t.Fatalf("NewInProcess: %v", err)
	}

	_, err = executor.Execute(context.Background(), testRequest(resource.Caps{}))
	if !errors.Is(err, boom) {
		t.Fatalf("Execute = %v, want handler error", err)
	}
}

func TestInProcessCapExceeded(t *testing.T) {
	fc := clock.Fake(testStart)
	cancelled := make(chan struct{})
	executor, err := NewInProcess(func(ctx context.Context, req Request) (Result, error) {
		<-ctx.Done()
		close(cancelled)
		return Result{}, ctx.Err()
	}, fc)
	if err != nil {
		t.Fatalf("NewInProcess: %v", err)
	}

	type outcome struct {
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		_, err := executor.Execute(context.Background(), testRequest(resource.Caps{CPUTime: time.Minute}))
		done <- outcome{err: err}
	}()

	fc.WaitForTimers(1)
	fc.Advance(time.Minute)

	out := testutil.RequireReceive(t, done, 5*time.Second, "waiting for cap breach")
	if !errors.Is(out.err, fault.CapExceeded) {
		t.Fatalf("Execute = %v, want fault.CapExceeded", out.err)
	}
	// The breach cancels the handler's context.
	testutil.RequireClosed(t, cancelled, 5*time.Second, "handler observing cancellation")
}

func TestInProcessZeroCapUnbounded(t *testing.T) {
	fc := clock.Fake(testStart)
	release := make(chan struct{})
	executor, err := NewInProcess(func(ctx context.Context, req Request) (Result, error) {
		<-release
		return Result{Output: []byte("done")}, nil
	}, fc)
	if err != nil {
		t.Fatalf("NewInProcess: %v", err)
	}

	done := make(chan Result, 1)
	go func() {
		result, _ := executor.Execute(context.Background(), testRequest(resource.Caps{}))
		done <- result
	}()

	// No cap, no timer.
	if got := fc.PendingCount(); got != 0 {
		t.Errorf("PendingCount = %d, want 0 for unbounded workload", got)
	}
	close(release)
	result := testutil.RequireReceive(t, done, 5*time.Second, "waiting for unbounded workload")
	if got := string(result.Output); got != "done" {
		t.Errorf("Output = %q, want %q", got, "done")
	}
}

func TestInProcessContextCancel(t *testing.T) {
	fc := clock.Fake(testStart)
	executor, err := NewInProcess(func(ctx context.Context, req Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}, fc)
	if err != nil {
		t.Fatalf("NewInProcess: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := executor.Execute(ctx, testRequest(resource.Caps{}))
		done <- err
	}()
	cancel()

	err = testutil.RequireReceive(t, done, 5*time.Second, "waiting for cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute = %v, want context.Canceled", err)
	}
}

func TestNewInProcessNilHandler(t *testing.T) {
	if _, err := NewInProcess(nil, nil); err == nil {
		t.Fatal("NewInProcess(nil) succeeded, want error")
	}
}
