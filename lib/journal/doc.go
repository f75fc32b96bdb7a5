// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal implements the kernel's append-only audit trail: a
// hash-chained event log where every record commits to its own
// content and to the record before it.
//
// Each appended event receives a sequence number, a timestamp, the
// chain hash of its predecessor, and a content hash: the keyed BLAKE3
// digest of the event's deterministic CBOR encoding with the content
// hash field zeroed. Because the predecessor hash is inside the
// hashed content, altering any stored field — or reordering, inserting,
// or dropping an event — breaks every hash from that point to the tip.
// The first event links to a fixed genesis value.
//
// The journal is the authority of record and lives in memory; its
// serialized representation is the export stream (see Export), a
// self-describing compressed CBOR envelope that Import verifies
// end-to-end before accepting. Appends are totally ordered process-
// wide: one tip, one writer lock. Queries and verification never
// modify the chain.
package journal
