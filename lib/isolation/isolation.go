// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package isolation

import (
	"context"

	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/token"
)

// WorkSpec describes one workload. The kernel never interprets it; it
// travels from the scheduling caller through the scheduler to the
// executor unchanged.
type WorkSpec struct {
	// Kind tags the workload for the executor, e.g. "shell" or
	// "agent-turn". Executors reject kinds they do not implement.
	Kind string `json:"kind"`

	// Payload is the opaque work body.
	Payload []byte `json:"payload,omitempty"`

	// Attrs carries free-form annotations for the executor.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Request is everything an executor receives for one workload: the
// node identity, the verified token payload (level, caps, profile
// hash), and the work itself.
type Request struct {
	Node  ref.NodeID
	Token token.Token
	Work  WorkSpec
}

// Result is what a completed workload produced.
type Result struct {
	// Output is the workload's opaque product.
	Output []byte

	// Attrs carries executor annotations surfaced into journal
	// events, e.g. measured spend.
	Attrs map[string]string
}

// Executor runs one workload under the caps of its token. Execute
// blocks until the workload finishes, its cap is breached, or ctx is
// cancelled. A cap breach returns a fault.CapExceeded error.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
