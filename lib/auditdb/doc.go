// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auditdb maintains a SQLite mirror of the event journal for
// out-of-band audit queries.
//
// The in-memory journal is the authority of record; the archive is a
// derived, rebuildable copy. It exists for the queries the journal is
// not shaped for — history spanning kernel restarts, time-window
// scans, per-node trails across many exports — and for operators who
// want SQL against the audit trail without holding a kernel.
//
// Ingestion only accepts verified chains. [Archive.IngestExport]
// verifies an export stream end-to-end before writing;
// [Archive.IngestEvents] and [Archive.Sync] verify the given chain
// from genesis. An ingest that would contradict already-archived
// history — any divergence in an event the archive already holds —
// fails with an Immutable fault and writes nothing. Re-ingesting the
// same chain or a stale prefix of it is a harmless no-op, so feeding
// every export you have into one archive is safe and idempotent.
//
// Because the database file itself carries no authority, anyone
// holding it can rewrite rows. [Archive.Verify] re-walks the stored
// chain and reports the first divergence, exactly as journal
// verification does for exports.
package auditdb
