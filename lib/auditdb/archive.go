// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auditdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/sqlitepool"
)

// Archive is a SQLite mirror of a journal's event chain, built for
// out-of-band queries that the in-memory journal is not shaped for:
// cross-restart history, time-window scans, operator reporting. It is
// not the authority of record — the journal is — and it is rebuildable
// at any time from an export, which is why ingestion verifies every
// chain before touching the database.
type Archive struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening an archive.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// sqlitepool.DefaultPoolSize if zero or negative.
	PoolSize int

	// Logger receives operational messages. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// schema is applied to every new connection. Idempotent.
const schema = `
	CREATE TABLE IF NOT EXISTS events (
		sequence     INTEGER PRIMARY KEY,
		timestamp    INTEGER NOT NULL,
		graph_id     TEXT,
		node_id      TEXT,
		level        INTEGER NOT NULL,
		profile_hash TEXT,
		action       TEXT NOT NULL,
		result       TEXT NOT NULL,
		attrs        TEXT,
		prev_hash    TEXT NOT NULL,
		content_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_node ON events(node_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_events_graph ON events(graph_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_events_action ON events(action, sequence);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(timestamp);
`

// Open creates or reopens an archive at cfg.Path. The schema is
// applied on open, so an empty file becomes a valid empty archive.
func Open(cfg Config) (*Archive, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auditdb: %w", err)
	}

	return &Archive{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (a *Archive) Close() error {
	return a.pool.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.pool.Path()
}

// IngestEvents archives the new suffix of a complete chain. The slice
// must verify from genesis; a broken chain is refused with an
// IntegrityViolation fault before anything is written.
//
// The archive refuses history mutation: if the incoming chain and the
// archived one disagree about any event that is already archived, the
// ingest fails with an Immutable fault. The check is O(1) despite
// comparing whole prefixes, because a content hash commits to the
// entire chain behind it — matching hashes at one sequence mean
// matching history up to it.
//
// Re-ingesting a chain the archive has already seen, or a stale
// prefix of it, is a no-op. Returns the number of newly archived
// events.
func (a *Archive) IngestEvents(ctx context.Context, events []journal.Event) (archived int, err error) {
	report := journal.VerifyChain(events)
	if err := report.Err(); err != nil {
		return 0, err
	}

	conn, err := a.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("auditdb: ingest: %w", err)
	}
	defer a.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("auditdb: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	held, heldTip, err := head(conn)
	if err != nil {
		return 0, err
	}

	if uint64(len(events)) < held {
		// Shorter than the archive: valid only as a stale prefix of
		// what we already hold.
		if len(events) == 0 {
			return 0, nil
		}
		tail := events[len(events)-1]
		same, err := hashAt(conn, tail.Sequence)
		if err != nil {
			return 0, err
		}
		if tail.ContentHash == same {
			return 0, nil
		}
		return 0, fault.New(fault.Immutable, "incoming chain of %d events contradicts archived history", len(events))
	}

	if held > 0 && events[held-1].ContentHash != heldTip {
		return 0, fault.New(fault.Immutable, "incoming chain rewrites archived history at event %d", held)
	}

	pending := events[held:]
	for i := range pending {
		if err = insertEvent(conn, &pending[i]); err != nil {
			return 0, err
		}
	}

	if len(pending) > 0 {
		a.logger.Info("events archived",
			"count", len(pending),
			"head", pending[len(pending)-1].Sequence,
		)
	}
	return len(pending), nil
}

// IngestExport reads an export stream, verifies it end-to-end, and
// archives its new suffix. Returns the count of newly archived events
// and the export's manifest.
func (a *Archive) IngestExport(ctx context.Context, r io.Reader) (int, journal.Manifest, error) {
	events, manifest, err := journal.Import(r)
	if err != nil {
		return 0, manifest, err
	}
	archived, err := a.IngestEvents(ctx, events)
	return archived, manifest, err
}

// Sync mirrors a live journal's current chain into the archive.
func (a *Archive) Sync(ctx context.Context, j *journal.Journal) (int, error) {
	return a.IngestEvents(ctx, j.Events())
}

// head returns the archived event count and the content hash of the
// most recent archived event.
func head(conn *sqlite.Conn) (uint64, digest.Digest, error) {
	var count uint64
	var tip digest.Digest
	err := sqlitex.Execute(conn,
		"SELECT sequence, content_hash FROM events ORDER BY sequence DESC LIMIT 1",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = uint64(stmt.ColumnInt64(0))
				parsed, err := digest.Parse(stmt.ColumnText(1))
				if err != nil {
					return fmt.Errorf("parse archived tip: %w", err)
				}
				tip = parsed
				return nil
			},
		})
	if err != nil {
		return 0, digest.Digest{}, fmt.Errorf("auditdb: reading head: %w", err)
	}
	return count, tip, nil
}

// hashAt returns the content hash of the archived event at the given
// sequence.
func hashAt(conn *sqlite.Conn, sequence uint64) (digest.Digest, error) {
	var hash digest.Digest
	err := sqlitex.Execute(conn,
		"SELECT content_hash FROM events WHERE sequence = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(sequence)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				parsed, err := digest.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("parse archived hash: %w", err)
				}
				hash = parsed
				return nil
			},
		})
	if err != nil {
		return digest.Digest{}, fmt.Errorf("auditdb: reading event %d: %w", sequence, err)
	}
	return hash, nil
}

// insertEvent writes one event row.
func insertEvent(conn *sqlite.Conn, e *journal.Event) error {
	var attrsJSON any
	if len(e.Attrs) > 0 {
		data, err := json.Marshal(e.Attrs)
		if err != nil {
			return fmt.Errorf("auditdb: marshal attrs: %w", err)
		}
		attrsJSON = string(data)
	}

	var graphID, nodeID, profileHash any
	if !e.Graph.IsZero() {
		graphID = e.Graph.String()
	}
	if !e.Node.IsZero() {
		nodeID = e.Node.String()
	}
	if !e.ProfileHash.IsZero() {
		profileHash = e.ProfileHash.String()
	}

	err := sqlitex.Execute(conn, `INSERT INTO events
		(sequence, timestamp, graph_id, node_id, level, profile_hash,
		 action, result, attrs, prev_hash, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			int64(e.Sequence),
			e.Timestamp,
			graphID,
			nodeID,
			int(e.Level),
			profileHash,
			e.Action,
			e.Result,
			attrsJSON,
			e.PrevHash.String(),
			e.ContentHash.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("auditdb: insert event %d: %w", e.Sequence, err)
	}
	return nil
}
