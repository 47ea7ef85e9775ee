// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/state"
	"github.com/hearth-foundation/hearth/storage"
)

// Fetcher retrieves events this server does not have, by ID. The
// pipeline gives it one round per batch event before parking the
// event as MissingAncestor. Implementations talk to peers; returning
// fewer events than asked is fine.
type Fetcher interface {
	FetchEvents(ctx context.Context, room ref.RoomID, ids []ref.EventID) ([][]byte, error)
}

// Config assembles a Pipeline.
type Config struct {
	// Store persists accepted events. Required.
	Store storage.Store

	// Keys verifies sender-server signatures. Nil skips signature
	// checks — only for trusted local input.
	Keys event.KeyResolver

	// Fetcher fills ancestor gaps. Nil disables fetching; gapped
	// events park as MissingAncestor immediately.
	Fetcher Fetcher

	// Logger receives per-event decisions. Nil discards.
	Logger *slog.Logger
}

// Pipeline routes event batches to per-room workers. Create with
// [New]; Close when done. Safe for concurrent use.
type Pipeline struct {
	store    storage.Store
	keys     event.KeyResolver
	fetcher  Fetcher
	logger   *slog.Logger
	resolver *state.Resolver

	mu      sync.Mutex
	workers map[ref.RoomID]chan *job
	closed  bool
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

type job struct {
	ctx  context.Context
	raws [][]byte
	done chan jobDone
}

type jobDone struct {
	result *Result
	err    error
}

// New builds a pipeline over the given store.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		store:    cfg.Store,
		keys:     cfg.Keys,
		fetcher:  cfg.Fetcher,
		logger:   logger,
		resolver: state.NewResolver(),
		workers:  make(map[ref.RoomID]chan *job),
	}, nil
}

// AddEvents submits a batch of wire-encoded events for one room and
// blocks until every event has an outcome. Batches for the same room
// are processed strictly in submission order; batches for different
// rooms run concurrently.
//
// Cancelling ctx abandons the wait, not an in-flight persist: an
// event that reached the commit step still lands.
func (p *Pipeline) AddEvents(ctx context.Context, room ref.RoomID, raws [][]byte) (*Result, error) {
	jobs, err := p.worker(room)
	if err != nil {
		return nil, err
	}
	defer p.senders.Done()
	j := &job{ctx: ctx, raws: raws, done: make(chan jobDone, 1)}
	select {
	case jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case done := <-j.done:
		return done.result, done.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops all workers and waits for in-flight batches to finish.
// AddEvents fails afterwards.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	// Submissions admitted before closed was set may still be parked
	// in a job-channel send; the channels must stay open until every
	// one of them has settled.
	p.senders.Wait()

	p.mu.Lock()
	for _, jobs := range p.workers {
		close(jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// worker returns the room's job channel, starting the goroutine on
// first use. The caller is registered as a sender under the same lock
// that guards the closed flag, so Close cannot slip between the check
// and the channel send.
func (p *Pipeline) worker(room ref.RoomID) (chan *job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("ingest: pipeline is closed")
	}
	jobs, ok := p.workers[room]
	if !ok {
		jobs = make(chan *job, 16)
		p.workers[room] = jobs
		p.wg.Add(1)
		go p.runWorker(room, jobs)
	}
	p.senders.Add(1)
	return jobs, nil
}

func (p *Pipeline) runWorker(room ref.RoomID, jobs chan *job) {
	defer p.wg.Done()
	for j := range jobs {
		result, err := p.processBatch(j.ctx, room, j.raws)
		j.done <- jobDone{result: result, err: err}
	}
}
