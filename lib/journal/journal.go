// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
)

// Journal is an in-memory hash-chained event log. Appends are
// serialized; reads take a shared lock and never block each other.
type Journal struct {
	clock clock.Clock

	mu     sync.RWMutex
	events []Event
	tip    digest.Digest
}

// New builds an empty journal whose tip is the genesis value.
func New(clk clock.Clock) *Journal {
	if clk == nil {
		clk = clock.Real()
	}
	return &Journal{
		clock: clk,
		tip:   genesis,
	}
}

// Append chains and stores an event. The journal assigns Sequence,
// Timestamp, PrevHash, and ContentHash, overwriting whatever the
// caller set there; all other fields are stored as given. Append
// never fails: chaining is the journal's own construction, and the
// event is durable in the chain when Append returns. The stored event
// is returned.
func (j *Journal) Append(e Event) Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.Sequence = uint64(len(j.events) + 1)
	e.Timestamp = j.clock.Now().UnixNano()
	e.PrevHash = j.tip
	e.ContentHash = contentHash(e)

	j.events = append(j.events, e)
	j.tip = e.ContentHash
	return e
}

// Len returns the number of events in the chain.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

// Tip returns the ContentHash of the most recent event, or the
// genesis value for an empty journal.
func (j *Journal) Tip() digest.Digest {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.tip
}

// At returns the event with the given sequence number.
func (j *Journal) At(sequence uint64) (Event, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if sequence < 1 || sequence > uint64(len(j.events)) {
		return Event{}, false
	}
	return j.events[sequence-1], true
}

// Events returns a copy of the full chain in append order.
func (j *Journal) Events() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	// Graph restricts to events scoped to one graph.
	Graph ref.GraphID
	// Node restricts to events about one node.
	Node ref.NodeID
	// ActionPrefix matches hierarchical action descriptors by
	// prefix: "token" matches "token/issue" and "token/downgrade".
	ActionPrefix string
	// MinLevel drops events below an autonomy level.
	MinLevel uint8
	// Since (inclusive) and Until (exclusive) bound the append time.
	Since time.Time
	Until time.Time
}

func (f Filter) matches(e Event) bool {
	if !f.Graph.IsZero() && e.Graph != f.Graph {
		return false
	}
	if !f.Node.IsZero() && e.Node != f.Node {
		return false
	}
	if f.ActionPrefix != "" && !strings.HasPrefix(e.Action, f.ActionPrefix) {
		return false
	}
	if e.Level < f.MinLevel {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp < f.Since.UnixNano() {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp >= f.Until.UnixNano() {
		return false
	}
	return true
}

// Query returns matching events in chain order. A limit of 0 means
// no limit; otherwise at most limit events are returned, keeping the
// earliest matches.
func (j *Journal) Query(f Filter, limit int) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Event
	for _, e := range j.events {
		if !f.matches(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// IntegrityReport is the result of a chain verification walk.
type IntegrityReport struct {
	Intact bool          `json:"intact"`
	Events int           `json:"events"`
	Tip    digest.Digest `json:"tip"`
	// BrokenAt is the sequence number of the first event that fails
	// verification, with Reason describing the failure. Zero when
	// intact.
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Err returns nil for an intact report, and an IntegrityViolation
// fault locating the break otherwise. Callers are expected to stop
// consuming the kernel on a non-nil result, not merely log it.
func (r IntegrityReport) Err() error {
	if r.Intact {
		return nil
	}
	return fault.New(fault.IntegrityViolation, "event %d: %s", r.BrokenAt, r.Reason)
}

// VerifyChain walks a complete chain from genesis, recomputing every
// content hash and checking every link. It reports the first break it
// finds; on a clean walk, Tip is the final content hash.
func VerifyChain(events []Event) IntegrityReport {
	prev := genesis
	for i, e := range events {
		seq := uint64(i + 1)
		switch {
		case e.Sequence != seq:
			return IntegrityReport{
				Events:   len(events),
				BrokenAt: seq,
				Reason:   "sequence mismatch",
			}
		case e.PrevHash != prev:
			return IntegrityReport{
				Events:   len(events),
				BrokenAt: seq,
				Reason:   "previous-hash link broken",
			}
		case contentHash(e) != e.ContentHash:
			return IntegrityReport{
				Events:   len(events),
				BrokenAt: seq,
				Reason:   "content hash mismatch",
			}
		}
		prev = e.ContentHash
	}
	return IntegrityReport{
		Intact: true,
		Events: len(events),
		Tip:    prev,
	}
}

// VerifyIntegrity verifies the journal's own chain, including that
// the stored tip matches the recomputed one.
func (j *Journal) VerifyIntegrity() IntegrityReport {
	j.mu.RLock()
	events := make([]Event, len(j.events))
	copy(events, j.events)
	tip := j.tip
	j.mu.RUnlock()

	report := VerifyChain(events)
	if report.Intact && report.Tip != tip {
		report.Intact = false
		report.BrokenAt = uint64(len(events))
		report.Reason = "stored tip does not match recomputed tip"
	}
	return report
}
