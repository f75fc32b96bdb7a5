// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"github.com/bureau-foundation/warden/lib/codec"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/ref"
)

// eventKey domain-separates journal content hashes from every other
// keyed hash in the kernel. Changing it invalidates every existing
// chain.
var eventKey = digest.MustKey("warden.journal.event")

// genesis is the PrevHash of the first event in every chain.
var genesis = digest.Sum(eventKey, []byte("genesis"))

// Genesis returns the fixed chain anchor: the PrevHash carried by the
// first event of every journal.
func Genesis() digest.Digest {
	return genesis
}

// Event is one record of the audit trail. Sequence, Timestamp,
// PrevHash, and ContentHash are assigned by the journal on append;
// the journal is their sole writer. Field numbers are part of the
// export format; never renumber them.
type Event struct {
	// Sequence is the append position, starting at 1.
	Sequence uint64 `cbor:"1,keyasint" json:"sequence"`
	// Timestamp is the append time in Unix nanoseconds.
	Timestamp int64 `cbor:"2,keyasint" json:"timestamp"`
	// Graph scopes the event. Zero for process-scope events.
	Graph ref.GraphID `cbor:"3,keyasint,omitempty" json:"graph,omitempty"`
	// Node is the subject node. Zero for graph- or process-scope
	// events.
	Node ref.NodeID `cbor:"4,keyasint,omitempty" json:"node,omitempty"`
	// Level is the autonomy level in effect at event time.
	Level uint8 `cbor:"5,keyasint,omitempty" json:"level,omitempty"`
	// ProfileHash pins the execution profile in effect, when one
	// applies.
	ProfileHash digest.Digest `cbor:"6,keyasint,omitempty" json:"profile_hash,omitempty"`
	// Action is the hierarchical action descriptor, e.g.
	// "graph/edge", "token/issue", "state/transition",
	// "watchdog/freeze".
	Action string `cbor:"7,keyasint" json:"action"`
	// Result describes the outcome: "ok", or "denied" with the
	// reason in Attrs.
	Result string `cbor:"8,keyasint" json:"result"`
	// Attrs carries action-specific detail as a flat string map.
	Attrs map[string]string `cbor:"9,keyasint,omitempty" json:"attrs,omitempty"`
	// PrevHash is the ContentHash of the preceding event, or the
	// genesis value for the first event.
	PrevHash digest.Digest `cbor:"10,keyasint" json:"prev_hash"`
	// ContentHash is the keyed digest of this event's encoding with
	// ContentHash itself zeroed. PrevHash participates, so the hash
	// commits to the whole chain behind it.
	ContentHash digest.Digest `cbor:"11,keyasint" json:"content_hash"`
}

// contentHash computes the chain hash of an event. The receiver is a
// copy, so zeroing ContentHash does not touch stored state.
func contentHash(e Event) digest.Digest {
	e.ContentHash = digest.Digest{}
	body, err := codec.Marshal(e)
	if err != nil {
		// Event contains only encodable field types; Marshal cannot
		// fail on it.
		panic("journal: event encoding failed: " + err.Error())
	}
	return digest.Sum(eventKey, body)
}
