// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the Hearth-standard SQLite connection
// pool used by the embedded room store.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode so the per-room writer never blocks readers, NORMAL
// synchronous for process-crash durability without per-commit fsync
// cost, busy timeout for write contention, and foreign keys ON —
// event rows, state rows, and extremity rows reference each other and
// the schema is written to let SQLite enforce it.
//
// The package is intentionally thin: standard pragmas, a fixed-size
// pool, and the raw zombiezen types. The room store writes SQL
// directly with sqlitex and manages its own transactions; there is no
// query-builder layer.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/hearth/rooms.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//
// Connections are NOT safe for concurrent use — each goroutine must
// Take its own connection and Put it back when done.
package sqlitepool
