// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/codec"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/lib/sqlitepool"
	"github.com/hearth-foundation/hearth/state"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS rooms (
		room_id     TEXT PRIMARY KEY,
		extremities BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		room_id  TEXT NOT NULL,
		event_id TEXT NOT NULL,
		depth    INTEGER NOT NULL,
		pdu      BLOB NOT NULL,
		PRIMARY KEY (room_id, event_id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_room_depth ON events(room_id, depth);

	CREATE TABLE IF NOT EXISTS state_after (
		room_id  TEXT NOT NULL,
		event_id TEXT NOT NULL,
		snapshot BLOB NOT NULL,
		PRIMARY KEY (room_id, event_id)
	);
`

// SQLiteConfig holds the parameters for opening a SQLite store.
type SQLiteConfig struct {
	// Path is the database file. Required.
	Path string

	// PoolSize is passed through to the connection pool.
	PoolSize int

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger
}

// SQLite is the durable Store: one database file per node, rooms
// side by side. Event bodies are zstd-compressed JSON; snapshots and
// extremity sets are deterministic CBOR.
type SQLite struct {
	pool       *sqlitepool.Pool
	logger     *slog.Logger
	compressor *zstd.Encoder
	expander   *zstd.Decoder
}

// OpenSQLite opens (creating if needed) the store at cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("event store: %w", err)
	}

	compressor, err := zstd.NewWriter(nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("event store: zstd encoder: %w", err)
	}
	expander, err := zstd.NewReader(nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("event store: zstd decoder: %w", err)
	}

	return &SQLite{
		pool:       pool,
		logger:     logger,
		compressor: compressor,
		expander:   expander,
	}, nil
}

func (s *SQLite) GetEvent(ctx context.Context, room ref.RoomID, id ref.EventID) (*event.PDU, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var compressed []byte
	err = sqlitex.Execute(conn,
		"SELECT pdu FROM events WHERE room_id = ? AND event_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{room.String(), id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				compressed = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, compressed)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("event store: reading %s: %w", id, err)
	}
	if compressed == nil {
		return nil, fmt.Errorf("event %s in %s: %w", id, room, ErrNotFound)
	}

	raw, err := s.expander.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("event store: decompressing %s: %w", id, err)
	}
	var p event.PDU
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("event store: decoding %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLite) HasEvent(ctx context.Context, room ref.RoomID, id ref.EventID) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)
	return s.hasEvent(conn, room, id)
}

func (s *SQLite) hasEvent(conn *sqlite.Conn, room ref.RoomID, id ref.EventID) (bool, error) {
	found := false
	err := sqlitex.Execute(conn,
		"SELECT 1 FROM events WHERE room_id = ? AND event_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{room.String(), id.String()},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("event store: checking %s: %w", id, err)
	}
	return found, nil
}

func (s *SQLite) StateAfter(ctx context.Context, room ref.RoomID, id ref.EventID) (state.Snapshot, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return state.Snapshot{}, err
	}
	defer s.pool.Put(conn)

	var blob []byte
	err = sqlitex.Execute(conn,
		"SELECT snapshot FROM state_after WHERE room_id = ? AND event_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{room.String(), id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				blob = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, blob)
				return nil
			},
		})
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("event store: reading state after %s: %w", id, err)
	}
	if blob == nil {
		return state.Snapshot{}, fmt.Errorf("state after %s in %s: %w", id, room, ErrNotFound)
	}

	var entries []state.Entry
	if err := codec.Unmarshal(blob, &entries); err != nil {
		return state.Snapshot{}, fmt.Errorf("event store: decoding state after %s: %w", id, err)
	}
	return state.FromEntries(entries), nil
}

func (s *SQLite) ForwardExtremities(ctx context.Context, room ref.RoomID) ([]ref.EventID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	return s.forwardExtremities(conn, room)
}

func (s *SQLite) forwardExtremities(conn *sqlite.Conn, room ref.RoomID) ([]ref.EventID, error) {
	var blob []byte
	err := sqlitex.Execute(conn,
		"SELECT extremities FROM rooms WHERE room_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{room.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				blob = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, blob)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("event store: reading extremities of %s: %w", room, err)
	}
	if blob == nil {
		return nil, nil
	}
	var ids []ref.EventID
	if err := codec.Unmarshal(blob, &ids); err != nil {
		return nil, fmt.Errorf("event store: decoding extremities of %s: %w", room, err)
	}
	return ids, nil
}

func (s *SQLite) PutEventAndState(ctx context.Context, room ref.RoomID, p *event.PDU, after state.Snapshot, prevExtrem, newExtrem []ref.EventID) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("event store: beginning commit of %s: %w", p.EventID, err)
	}
	defer endTransaction(&err)

	stored, err := s.forwardExtremities(conn, room)
	if err != nil {
		return err
	}
	if !sameExtremities(stored, prevExtrem) {
		return fmt.Errorf("committing %s in %s: %w", p.EventID, room, ErrStaleExtremities)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("event store: encoding %s: %w", p.EventID, err)
	}
	err = sqlitex.Execute(conn,
		"INSERT OR REPLACE INTO events (room_id, event_id, depth, pdu) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{room.String(), p.EventID.String(), p.Depth, s.compressor.EncodeAll(raw, nil)},
		})
	if err != nil {
		return fmt.Errorf("event store: writing %s: %w", p.EventID, err)
	}

	snapshotBlob, err := codec.Marshal(after.Entries())
	if err != nil {
		return fmt.Errorf("event store: encoding state after %s: %w", p.EventID, err)
	}
	err = sqlitex.Execute(conn,
		"INSERT OR REPLACE INTO state_after (room_id, event_id, snapshot) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{room.String(), p.EventID.String(), snapshotBlob},
		})
	if err != nil {
		return fmt.Errorf("event store: writing state after %s: %w", p.EventID, err)
	}

	extremBlob, err := codec.Marshal(ref.SortEventIDs(append([]ref.EventID(nil), newExtrem...)))
	if err != nil {
		return fmt.Errorf("event store: encoding extremities of %s: %w", room, err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO rooms (room_id, extremities) VALUES (?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET extremities = excluded.extremities`,
		&sqlitex.ExecOptions{
			Args: []any{room.String(), extremBlob},
		})
	if err != nil {
		return fmt.Errorf("event store: writing extremities of %s: %w", room, err)
	}
	return nil
}

func (s *SQLite) RoomExists(ctx context.Context, room ref.RoomID) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn,
		"SELECT 1 FROM rooms WHERE room_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{room.String()},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("event store: checking room %s: %w", room, err)
	}
	return found, nil
}

// Close closes the pool and releases the compressors.
func (s *SQLite) Close() error {
	s.compressor.Close()
	s.expander.Close()
	return s.pool.Close()
}
