// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("Open with empty Path should fail")
	}
}

func TestTakePutRoundTrip(t *testing.T) {
	pool, err := Open(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, "CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT);", nil)
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	err = sqlitex.Execute(conn, "INSERT INTO kv (k, v) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{"key", "value"},
	})
	pool.Put(conn)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	conn, err = pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	var got string
	err = sqlitex.Execute(conn, "SELECT v FROM kv WHERE k = ?", &sqlitex.ExecOptions{
		Args: []any{"key"},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			got = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "value" {
		t.Errorf("read back %q, want %q", got, "value")
	}
}
