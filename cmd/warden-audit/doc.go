// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Warden-audit maintains SQLite archives of journal exports and
// answers questions the in-memory journal is not shaped for: history
// across kernel restarts, time-window scans, per-node audits.
//
// Every ingest verifies the export's hash chain end to end before a
// single row is written, and the archive refuses chains that
// contradict what it already holds, so the database stays a faithful
// mirror — though never the authority of record, which the live
// journal remains. An archive can always be rebuilt from exports.
//
// Subcommands: ingest, query, stats, verify, version. Exit code 0 on
// success, 1 on any failure (including a failed verification).
package main
