// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auditdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/ref"
)

// DefaultQueryLimit bounds Query results when the filter does not set
// a limit.
const DefaultQueryLimit = 100

// Filter specifies the criteria for querying archived events. All
// fields are optional; zero-valued fields are not applied as filters.
type Filter struct {
	// Graph restricts to events scoped to one graph.
	Graph ref.GraphID

	// Node restricts to events about one node.
	Node ref.NodeID

	// ActionPrefix matches hierarchical action descriptors by prefix:
	// "token" matches "token/issue" and "token/downgrade".
	ActionPrefix string

	// Result is an exact match on the event result ("ok", "denied",
	// a fault slug).
	Result string

	// MinLevel drops events below an autonomy level.
	MinLevel uint8

	// Since (inclusive) and Until (exclusive) bound the append time.
	Since time.Time
	Until time.Time

	// Limit is the maximum events to return (default
	// DefaultQueryLimit).
	Limit int
}

// Query returns archived events matching the filter, in chain order.
func (a *Archive) Query(ctx context.Context, filter Filter) ([]journal.Event, error) {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("auditdb: query: %w", err)
	}
	defer a.pool.Put(conn)

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var conditions []string
	var args []any

	if !filter.Graph.IsZero() {
		conditions = append(conditions, "graph_id = ?")
		args = append(args, filter.Graph.String())
	}
	if !filter.Node.IsZero() {
		conditions = append(conditions, "node_id = ?")
		args = append(args, filter.Node.String())
	}
	if filter.ActionPrefix != "" {
		conditions = append(conditions, "action LIKE ?")
		args = append(args, filter.ActionPrefix+"%")
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}
	if filter.MinLevel > 0 {
		conditions = append(conditions, "level >= ?")
		args = append(args, int(filter.MinLevel))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.Until.UnixNano())
	}

	query := "SELECT sequence, timestamp, graph_id, node_id, level, " +
		"profile_hash, action, result, attrs, prev_hash, content_hash FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sequence LIMIT ?"
	args = append(args, limit)

	var events []journal.Event
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			event, err := scanEvent(stmt)
			if err != nil {
				return err
			}
			events = append(events, event)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auditdb: query events: %w", err)
	}
	return events, nil
}

// Verify re-reads the entire archive in sequence order and verifies
// the hash chain. A clean report proves the mirror still matches the
// history it was built from; the database file itself carries no
// authority.
func (a *Archive) Verify(ctx context.Context) (journal.IntegrityReport, error) {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return journal.IntegrityReport{}, fmt.Errorf("auditdb: verify: %w", err)
	}
	defer a.pool.Put(conn)

	events, err := allEvents(conn)
	if err != nil {
		return journal.IntegrityReport{}, err
	}
	return journal.VerifyChain(events), nil
}

// Stats summarizes the archive for status output.
type Stats struct {
	// Events is the archived event count.
	Events int64 `json:"events"`

	// Oldest and Newest are the append times of the first and last
	// archived events. Zero when the archive is empty.
	Oldest time.Time `json:"oldest,omitzero"`
	Newest time.Time `json:"newest,omitzero"`

	// Tip is the content hash of the most recent archived event.
	Tip digest.Digest `json:"tip"`

	// DatabaseSizeBytes is the SQLite file size.
	DatabaseSizeBytes int64 `json:"database_size_bytes"`
}

// Stats returns current archive statistics.
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("auditdb: stats: %w", err)
	}
	defer a.pool.Put(conn)

	var stats Stats
	err = sqlitex.Execute(conn,
		"SELECT COUNT(*), COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0) FROM events",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.Events = stmt.ColumnInt64(0)
				if stats.Events > 0 {
					stats.Oldest = time.Unix(0, stmt.ColumnInt64(1)).UTC()
					stats.Newest = time.Unix(0, stmt.ColumnInt64(2)).UTC()
				}
				return nil
			},
		})
	if err != nil {
		return stats, fmt.Errorf("auditdb: counting events: %w", err)
	}

	if stats.Events > 0 {
		_, tip, err := head(conn)
		if err != nil {
			return stats, err
		}
		stats.Tip = tip
	}

	// Database size via page_count * page_size.
	err = sqlitex.Execute(conn,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.DatabaseSizeBytes = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return stats, fmt.Errorf("auditdb: database size: %w", err)
	}

	return stats, nil
}

// allEvents reads the full archive in sequence order.
func allEvents(conn *sqlite.Conn) ([]journal.Event, error) {
	var events []journal.Event
	err := sqlitex.Execute(conn,
		"SELECT sequence, timestamp, graph_id, node_id, level, profile_hash, "+
			"action, result, attrs, prev_hash, content_hash FROM events ORDER BY sequence",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event, err := scanEvent(stmt)
				if err != nil {
					return err
				}
				events = append(events, event)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("auditdb: reading archive: %w", err)
	}
	return events, nil
}

// scanEvent reconstructs a journal event from a row.
func scanEvent(stmt *sqlite.Stmt) (journal.Event, error) {
	var e journal.Event

	// Columns: sequence(0), timestamp(1), graph_id(2), node_id(3),
	// level(4), profile_hash(5), action(6), result(7), attrs(8),
	// prev_hash(9), content_hash(10)

	e.Sequence = uint64(stmt.ColumnInt64(0))
	e.Timestamp = stmt.ColumnInt64(1)

	if !stmt.ColumnIsNull(2) {
		graphID, err := ref.ParseGraphID(stmt.ColumnText(2))
		if err != nil {
			return e, fmt.Errorf("parse graph id: %w", err)
		}
		e.Graph = graphID
	}
	if !stmt.ColumnIsNull(3) {
		nodeID, err := ref.ParseNodeID(stmt.ColumnText(3))
		if err != nil {
			return e, fmt.Errorf("parse node id: %w", err)
		}
		e.Node = nodeID
	}

	e.Level = uint8(stmt.ColumnInt(4))

	if !stmt.ColumnIsNull(5) {
		profileHash, err := digest.Parse(stmt.ColumnText(5))
		if err != nil {
			return e, fmt.Errorf("parse profile hash: %w", err)
		}
		e.ProfileHash = profileHash
	}

	e.Action = stmt.ColumnText(6)
	e.Result = stmt.ColumnText(7)

	if !stmt.ColumnIsNull(8) {
		if err := json.Unmarshal([]byte(stmt.ColumnText(8)), &e.Attrs); err != nil {
			return e, fmt.Errorf("unmarshal attrs: %w", err)
		}
	}

	prevHash, err := digest.Parse(stmt.ColumnText(9))
	if err != nil {
		return e, fmt.Errorf("parse prev hash: %w", err)
	}
	e.PrevHash = prevHash

	contentHash, err := digest.Parse(stmt.ColumnText(10))
	if err != nil {
		return e, fmt.Errorf("parse content hash: %w", err)
	}
	e.ContentHash = contentHash

	return e, nil
}
