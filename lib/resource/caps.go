// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource defines the capability vector attached to nodes,
// tokens, and policy: the externally enforced consumption bounds a
// workload runs under. The kernel compares vectors; it never meters
// consumption itself — metering belongs to the isolation layer.
package resource

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Caps is a declared resource allocation. A zero field means "none"
// when declaring needs and "unbounded" when used as a limit — Within
// and a ledger's budget both treat zero limit fields as absent.
type Caps struct {
	// CPUTime is the wall-clock execution allowance.
	CPUTime time.Duration `cbor:"1,keyasint,omitempty" json:"cpu_time,omitempty"`

	// MemoryBytes is the peak resident memory allowance.
	MemoryBytes uint64 `cbor:"2,keyasint,omitempty" json:"memory_bytes,omitempty"`

	// TokenBudget is the model token spend allowance.
	TokenBudget uint64 `cbor:"3,keyasint,omitempty" json:"token_budget,omitempty"`

	// MaxIterations bounds agentic loop turns.
	MaxIterations uint32 `cbor:"4,keyasint,omitempty" json:"max_iterations,omitempty"`
}

// IsZero reports whether no resource is declared in any dimension.
func (c Caps) IsZero() bool { return c == Caps{} }

// Within reports whether every declared dimension of c fits under the
// corresponding dimension of limit. Zero limit fields are unbounded.
func (c Caps) Within(limit Caps) bool {
	if limit.CPUTime > 0 && c.CPUTime > limit.CPUTime {
		return false
	}
	if limit.MemoryBytes > 0 && c.MemoryBytes > limit.MemoryBytes {
		return false
	}
	if limit.TokenBudget > 0 && c.TokenBudget > limit.TokenBudget {
		return false
	}
	if limit.MaxIterations > 0 && c.MaxIterations > limit.MaxIterations {
		return false
	}
	return true
}

// Add returns the per-dimension sum of c and other.
func (c Caps) Add(other Caps) Caps {
	return Caps{
		CPUTime:       c.CPUTime + other.CPUTime,
		MemoryBytes:   c.MemoryBytes + other.MemoryBytes,
		TokenBudget:   c.TokenBudget + other.TokenBudget,
		MaxIterations: c.MaxIterations + other.MaxIterations,
	}
}

// Minus returns c reduced by other, saturating at zero in each
// dimension.
func (c Caps) Minus(other Caps) Caps {
	result := Caps{}
	if c.CPUTime > other.CPUTime {
		result.CPUTime = c.CPUTime - other.CPUTime
	}
	if c.MemoryBytes > other.MemoryBytes {
		result.MemoryBytes = c.MemoryBytes - other.MemoryBytes
	}
	if c.TokenBudget > other.TokenBudget {
		result.TokenBudget = c.TokenBudget - other.TokenBudget
	}
	if c.MaxIterations > other.MaxIterations {
		result.MaxIterations = c.MaxIterations - other.MaxIterations
	}
	return result
}

// String returns a compact log form listing only declared dimensions,
// e.g. "cpu=30s mem=512 MiB tokens=10000 iterations=25". The zero
// value renders as "none".
func (c Caps) String() string {
	var parts []string
	if c.CPUTime > 0 {
		parts = append(parts, "cpu="+c.CPUTime.String())
	}
	if c.MemoryBytes > 0 {
		parts = append(parts, "mem="+humanize.IBytes(c.MemoryBytes))
	}
	if c.TokenBudget > 0 {
		parts = append(parts, fmt.Sprintf("tokens=%d", c.TokenBudget))
	}
	if c.MaxIterations > 0 {
		parts = append(parts, fmt.Sprintf("iterations=%d", c.MaxIterations))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
