// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides warden's SQLite connection pool.
//
// The audit archive is its consumer: a rebuildable SQLite mirror of
// the event journal, read-heavy and written by a single ingest path.
// The package wraps zombiezen.com/go/sqlite with pragmas chosen for
// that shape: WAL journal mode so queries never block ingest,
// synchronous=NORMAL (transactions survive process crashes; the
// journal or export stream the archive was built from remains the
// authority after anything worse), a 5-second busy timeout, and
// in-memory temp storage.
//
// The pool is built on sqlitex.Pool and keeps its discipline: callers
// [Pool.Take] a connection, work, and [Pool.Put] it back. The pool is
// safe for concurrent use; a connection belongs to one goroutine at a
// time.
//
// The package is intentionally thin. It applies pragmas and exposes
// the zombiezen types directly — consumers write SQL with
// sqlitex.Execute and manage transactions themselves. No query
// builder, no ORM.
package sqlitepool
