// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"io"

	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/version"
)

// ValidateAction runs the compliance gate on a proposed action
// without applying anything. Validation is free: it never mutates
// state and is not journaled, so callers can probe policy as often as
// they like.
func (k *Kernel) ValidateAction(action compliance.Action) compliance.Report {
	return k.gate.Validate(action)
}

// QueryPolicy returns the current policy snapshot: autonomy ceilings,
// per-token caps maxima, and the budget with its commitment.
func (k *Kernel) QueryPolicy() compliance.PolicySnapshot {
	return k.gate.Snapshot()
}

// CheckResources reports whether a caps declaration fits the
// remaining uncommitted budget, and what that remainder is.
func (k *Kernel) CheckResources(caps resource.Caps) (bool, resource.Caps) {
	return k.gate.Ledger().Fits(caps), k.gate.Availability()
}

// ExternalEvent is an out-of-band observability record offered to the
// journal by a wrapping system.
type ExternalEvent struct {
	Graph ref.GraphID
	Node  ref.NodeID

	// Action must live under the "external/" namespace; anything else
	// is denied so external records can never impersonate kernel ones.
	Action string

	// Result defaults to "ok".
	Result string

	Attrs map[string]string
}

// LogEvent appends an external observability event to the journal and
// returns the sealed record, content hash included.
func (k *Kernel) LogEvent(e ExternalEvent) (journal.Event, error) {
	action := compliance.AppendRecord{Action: e.Action}
	if report := k.gate.Validate(action); !report.Allowed() {
		return journal.Event{}, k.deny(e.Graph, e.Node, report)
	}
	result := e.Result
	if result == "" {
		result = "ok"
	}
	return k.journal.Append(journal.Event{
		Graph:  e.Graph,
		Node:   e.Node,
		Action: e.Action,
		Result: result,
		Attrs:  e.Attrs,
	}), nil
}

// QueryEvents returns journal events matching the filter, earliest
// first in chain order. A positive limit caps the result; zero means
// unlimited.
func (k *Kernel) QueryEvents(f journal.Filter, limit int) []journal.Event {
	return k.journal.Query(f, limit)
}

// Events returns a copy of the full journal, earliest first. It is
// shorthand for an unfiltered QueryEvents, and what an audit archive
// ingests when it syncs from a live kernel.
func (k *Kernel) Events() []journal.Event {
	return k.journal.Events()
}

// VerifyIntegrity walks the journal's full hash chain and reports the
// first break, if any.
func (k *Kernel) VerifyIntegrity() journal.IntegrityReport {
	return k.journal.VerifyIntegrity()
}

// JournalTip returns the content hash of the most recent journal
// event: the kernel's audit state in one value.
func (k *Kernel) JournalTip() digest.Digest {
	return k.journal.Tip()
}

// ExportJournal writes the full event chain to w as one compressed,
// self-describing envelope for offline verification or archival.
func (k *Kernel) ExportJournal(w io.Writer, opts journal.ExportOptions) error {
	return k.journal.Export(w, opts)
}

// APIVersion returns the kernel's semantic API version.
func (k *Kernel) APIVersion() version.Triple {
	return version.API
}

// CheckCompatibility classifies a client's expected API version
// against the kernel's.
func (k *Kernel) CheckCompatibility(expected version.Triple) version.Compatibility {
	return version.Check(expected)
}
