// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// hearthd is the Hearth event-processing daemon. It reads
// newline-delimited JSON events on stdin, runs them through the
// ingestion pipeline, and writes one JSON outcome line per event to
// stdout. Consecutive lines for the same room form one batch, so a
// feeder that groups its output by room gets batch semantics for
// free.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/ingest"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hearthd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("hearthd", pflag.ContinueOnError)
	configPath := flagSet.String("config", "hearthd.yaml", "path to YAML configuration")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	server, err := ref.ParseServerName(cfg.ServerName)
	if err != nil {
		return fmt.Errorf("server_name: %w", err)
	}
	keyring, err := event.LoadKeyring(server, cfg.KeyDir)
	if err != nil {
		return err
	}
	logger.Info("keyring loaded", "server", server, "keys", keyring.KeyIDs())

	var store storage.Store
	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemory()
	case "sqlite":
		store, err = storage.OpenSQLite(storage.SQLiteConfig{
			Path:   cfg.Storage.Path,
			Logger: logger,
		})
		if err != nil {
			return err
		}
	}
	defer store.Close()

	pipeline, err := ingest.New(ingest.Config{
		Store:  store,
		Keys:   keyring,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return feed(ctx, pipeline, os.Stdin, os.Stdout, logger)
}

// feed streams stdin through the pipeline: consecutive lines for one
// room accumulate into a batch, flushed when the room changes or
// input ends. Lines too broken to name a room are answered directly.
func feed(ctx context.Context, pipeline *ingest.Pipeline, in *os.File, out *os.File, logger *slog.Logger) error {
	encoder := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), event.MaxEventSize+4096)

	var room ref.RoomID
	var batch [][]byte
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		result, err := pipeline.AddEvents(ctx, room, batch)
		if err != nil {
			return fmt.Errorf("room %s: %w", room, err)
		}
		for _, outcome := range result.Outcomes {
			if err := encoder.Encode(outcome); err != nil {
				return fmt.Errorf("writing outcome: %w", err)
			}
		}
		batch = nil
		return nil
	}

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		lineRoom, err := roomOf(line)
		if err != nil {
			if flushErr := flush(); flushErr != nil {
				return flushErr
			}
			logger.Warn("dropping line without a room", "error", err)
			if err := encoder.Encode(ingest.Outcome{
				Status: ingest.Rejected,
				Code:   ingest.CodeMalformed,
				Reason: err.Error(),
			}); err != nil {
				return fmt.Errorf("writing outcome: %w", err)
			}
			continue
		}
		if lineRoom != room {
			if err := flush(); err != nil {
				return err
			}
			room = lineRoom
		}
		batch = append(batch, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return flush()
}

// roomOf extracts the room_id from a wire event without validating
// the rest.
func roomOf(raw []byte) (ref.RoomID, error) {
	var probe struct {
		RoomID ref.RoomID `json:"room_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ref.RoomID{}, fmt.Errorf("unparseable event: %w", err)
	}
	if probe.RoomID.IsZero() {
		return ref.RoomID{}, fmt.Errorf("event carries no room_id")
	}
	return probe.RoomID, nil
}
