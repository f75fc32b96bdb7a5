// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/warden/lib/sqlitepool"
)

// openPool creates a file-backed pool that closes with the test.
func openPool(t *testing.T, onConnect func(*sqlite.Conn) error) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(t.TempDir(), "archive.db"),
		PoolSize:  4,
		OnConnect: onConnect,
	})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("close pool: %v", err)
		}
	})
	return pool
}

func pragmaText(t *testing.T, conn *sqlite.Conn, pragma string) string {
	t.Helper()
	var value string
	err := sqlitex.Execute(conn, "PRAGMA "+pragma, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA %s: %v", pragma, err)
	}
	return value
}

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openPool(t, nil)
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	defer pool.Put(conn)

	if mode := pragmaText(t, conn, "journal_mode"); mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	// synchronous reports 1 for NORMAL.
	if level := pragmaText(t, conn, "synchronous"); level != "1" {
		t.Errorf("synchronous = %q, want 1", level)
	}
}

func TestOnConnectCreatesSchema(t *testing.T) {
	pool := openPool(t, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			CREATE TABLE IF NOT EXISTS records (
				sequence INTEGER PRIMARY KEY,
				action   TEXT NOT NULL
			);
		`, nil)
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	defer pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO records (sequence, action) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{1, "graph/create"},
	})
	if err != nil {
		t.Fatalf("insert into OnConnect-created table: %v", err)
	}
}

func TestConcurrentReaders(t *testing.T) {
	pool := openPool(t, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			CREATE TABLE IF NOT EXISTS records (sequence INTEGER PRIMARY KEY);
		`, nil)
	})

	setup, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("take for setup: %v", err)
	}
	for sequence := 1; sequence <= 10; sequence++ {
		err := sqlitex.Execute(setup, "INSERT INTO records (sequence) VALUES (?)", &sqlitex.ExecOptions{
			Args: []any{sequence},
		})
		if err != nil {
			t.Fatalf("insert %d: %v", sequence, err)
		}
	}
	pool.Put(setup)

	const readers = 8
	var wg sync.WaitGroup
	failures := make(chan error, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := pool.Take(context.Background())
			if err != nil {
				failures <- err
				return
			}
			defer pool.Put(conn)

			var count int
			err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM records", &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = stmt.ColumnInt(0)
					return nil
				},
			})
			if err != nil {
				failures <- err
				return
			}
			if count != 10 {
				failures <- fmt.Errorf("count = %d, want 10", count)
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("open with empty path must fail")
	}
}

func TestTakeHonorsContext(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "single.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pool.Close()

	held, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	// Pool exhausted: a cancelled context must fail instead of block.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("take with cancelled context must fail")
	}

	pool.Put(held)
}

func TestPathAccessor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "named.db")
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pool.Close()
	if pool.Path() != path {
		t.Fatalf("path = %q, want %q", pool.Path(), path)
	}
}
