// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearth-foundation/hearth/auth"
	"github.com/hearth-foundation/hearth/dag"
	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/state"
	"github.com/hearth-foundation/hearth/storage"
)

// batchSource is the dag.EventSource for one batch: events accepted
// earlier in the batch shadow the store. EventSource has no error
// channel, so a backend failure is recorded here: "unknown event" and
// "store is down" must not be conflated, or a transient outage would
// masquerade as a missing ancestor and trigger pointless fetches.
type batchSource struct {
	ctx   context.Context
	store storage.Store
	room  ref.RoomID
	local map[ref.EventID]*event.PDU
	err   error
}

func (s *batchSource) Event(id ref.EventID) (*event.PDU, bool) {
	if p, ok := s.local[id]; ok {
		return p, true
	}
	p, err := s.store.GetEvent(s.ctx, s.room, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && s.err == nil {
			s.err = err
		}
		return nil, false
	}
	return p, true
}

// takeErr returns and clears the recorded backend failure.
func (s *batchSource) takeErr() error {
	err := s.err
	s.err = nil
	return err
}

// processBatch runs on the room's worker goroutine.
func (p *Pipeline) processBatch(ctx context.Context, room ref.RoomID, raws [][]byte) (*Result, error) {
	outcomes := make([]Outcome, len(raws))

	// Validation pass. Failures are remembered by claimed ID so
	// batch-mates that build on them fail with them.
	var pdus []*event.PDU
	index := make(map[ref.EventID]int, len(raws))
	failed := make(map[ref.EventID]Code)
	var duplicates [][2]int
	for i, raw := range raws {
		pdu, err := event.ParseAndValidate(raw, p.keys)
		if err != nil {
			id := claimedID(raw)
			code := codeFor(err)
			outcomes[i] = rejected(id, code, err.Error())
			if !id.IsZero() {
				failed[id] = code
			}
			p.logger.Warn("event failed validation",
				"room", room, "event", id, "code", code, "error", err)
			continue
		}
		if pdu.RoomID != room {
			outcomes[i] = rejected(pdu.EventID, CodeMalformed,
				fmt.Sprintf("event belongs to room %s", pdu.RoomID))
			failed[pdu.EventID] = CodeMalformed
			continue
		}
		if first, dup := index[pdu.EventID]; dup {
			duplicates = append(duplicates, [2]int{i, first})
			continue
		}
		index[pdu.EventID] = i
		pdus = append(pdus, pdu)
	}

	src := &batchSource{
		ctx:   ctx,
		store: p.store,
		room:  room,
		local: make(map[ref.EventID]*event.PDU, len(pdus)),
	}
	states := make(map[ref.EventID]state.Snapshot, len(pdus))

	for _, pdu := range dag.TopologicalOrder(pdus) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcomes[index[pdu.EventID]] = p.processEvent(ctx, room, pdu, src, states, failed, true)
	}
	for _, dup := range duplicates {
		outcomes[dup[0]] = outcomes[dup[1]]
	}

	extremities, err := p.store.ForwardExtremities(context.WithoutCancel(ctx), room)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading extremities of %s: %w", room, err)
	}
	return &Result{Outcomes: outcomes, ForwardExtremities: extremities}, nil
}

func (p *Pipeline) processEvent(ctx context.Context, room ref.RoomID, pdu *event.PDU,
	src *batchSource, states map[ref.EventID]state.Snapshot,
	failed map[ref.EventID]Code, allowFetch bool) Outcome {

	// Acceptance is permanent; a known event is a no-op accept.
	has, err := p.store.HasEvent(ctx, room, pdu.EventID)
	if err != nil {
		return rejected(pdu.EventID, CodeStorage, err.Error())
	}
	if has {
		return accepted(pdu.EventID)
	}

	for _, prev := range pdu.PrevEvents {
		if code, ok := failed[prev]; ok {
			failed[pdu.EventID] = code
			return rejected(pdu.EventID, code,
				fmt.Sprintf("depends on failed event %s", prev))
		}
	}

	if pdu.IsCreate() {
		exists, err := p.store.RoomExists(ctx, room)
		if err != nil {
			return rejected(pdu.EventID, CodeStorage, err.Error())
		}
		if exists {
			failed[pdu.EventID] = CodeForbidden
			return rejected(pdu.EventID, CodeForbidden, "room already exists")
		}
	}

	depth, err := dag.Link(pdu, src)
	if serr := src.takeErr(); serr != nil {
		return rejected(pdu.EventID, CodeStorage, serr.Error())
	}
	if err != nil {
		var missing *dag.MissingAncestorError
		if !errors.As(err, &missing) {
			return rejected(pdu.EventID, CodeStorage, err.Error())
		}
		if allowFetch && p.fetcher != nil {
			p.fetchRound(ctx, room, missing.IDs, src, states, failed)
			depth, err = dag.Link(pdu, src)
			if serr := src.takeErr(); serr != nil {
				return rejected(pdu.EventID, CodeStorage, serr.Error())
			}
		}
		if err != nil {
			if errors.As(err, &missing) {
				return missingAncestors(pdu.EventID, missing.IDs)
			}
			return rejected(pdu.EventID, CodeStorage, err.Error())
		}
	}
	if depth != pdu.Depth {
		failed[pdu.EventID] = CodeMalformed
		return rejected(pdu.EventID, CodeMalformed,
			fmt.Sprintf("claimed depth %d, graph position gives %d", pdu.Depth, depth))
	}

	before, err := p.stateBefore(ctx, room, pdu, src, states)
	if serr := src.takeErr(); serr != nil {
		return rejected(pdu.EventID, CodeStorage, serr.Error())
	}
	if err != nil {
		return rejected(pdu.EventID, CodeStorage, err.Error())
	}

	verdict := auth.Authorize(pdu, state.NewView(before, src))
	if serr := src.takeErr(); serr != nil {
		return rejected(pdu.EventID, CodeStorage, serr.Error())
	}
	if !verdict.Allowed() {
		failed[pdu.EventID] = CodeForbidden
		p.logger.Warn("event forbidden",
			"room", room, "event", pdu.EventID, "type", pdu.Type,
			"reason", verdict.Reason, "detail", verdict.Detail)
		return rejected(pdu.EventID, CodeForbidden,
			fmt.Sprintf("%s: %s", verdict.Reason, verdict.Detail))
	}

	after := before.Advance(pdu)
	if outcome, ok := p.persist(ctx, room, pdu, after); !ok {
		return outcome
	}
	src.local[pdu.EventID] = pdu
	states[pdu.EventID] = after
	p.logger.Info("event accepted",
		"room", room, "event", pdu.EventID, "type", pdu.Type, "depth", pdu.Depth)
	return accepted(pdu.EventID)
}

// fetchRound asks the fetcher for the missing IDs and runs whatever
// comes back through the acceptance path, once. Fetched events that
// are themselves gapped simply fail to land; the caller's retry will
// park on whatever is still missing.
func (p *Pipeline) fetchRound(ctx context.Context, room ref.RoomID, need []ref.EventID,
	src *batchSource, states map[ref.EventID]state.Snapshot, failed map[ref.EventID]Code) {

	raws, err := p.fetcher.FetchEvents(ctx, room, need)
	if err != nil {
		p.logger.Warn("ancestor fetch failed", "room", room, "need", len(need), "error", err)
		return
	}
	var fetched []*event.PDU
	for _, raw := range raws {
		pdu, err := event.ParseAndValidate(raw, p.keys)
		if err != nil {
			p.logger.Warn("fetched ancestor failed validation", "room", room, "error", err)
			continue
		}
		if pdu.RoomID != room {
			continue
		}
		fetched = append(fetched, pdu)
	}
	for _, pdu := range dag.TopologicalOrder(fetched) {
		outcome := p.processEvent(ctx, room, pdu, src, states, failed, false)
		if outcome.Status != Accepted {
			p.logger.Warn("fetched ancestor not accepted",
				"room", room, "event", pdu.EventID, "code", outcome.Code, "reason", outcome.Reason)
		}
	}
}

// stateBefore materializes the state at pdu's graph position: its
// single parent's post-state, or the resolution of all parents'
// post-states at a fork.
func (p *Pipeline) stateBefore(ctx context.Context, room ref.RoomID, pdu *event.PDU,
	src *batchSource, states map[ref.EventID]state.Snapshot) (state.Snapshot, error) {

	if pdu.IsCreate() {
		return state.Snapshot{}, nil
	}
	branches := make([]state.Snapshot, 0, len(pdu.PrevEvents))
	for _, prev := range pdu.PrevEvents {
		if snapshot, ok := states[prev]; ok {
			branches = append(branches, snapshot)
			continue
		}
		snapshot, err := p.store.StateAfter(ctx, room, prev)
		if err != nil {
			return state.Snapshot{}, err
		}
		branches = append(branches, snapshot)
	}
	return p.resolver.Resolve(ctx, branches, src)
}

// persist commits the event on a detached context: once an event is
// authorized, cancellation must not leave the room half-written. The
// extremity CAS retries a few times in case an outside writer shares
// the store.
func (p *Pipeline) persist(ctx context.Context, room ref.RoomID, pdu *event.PDU, after state.Snapshot) (Outcome, bool) {
	detached := context.WithoutCancel(ctx)
	for attempt := 0; attempt < 3; attempt++ {
		current, err := p.store.ForwardExtremities(detached, room)
		if err != nil {
			return rejected(pdu.EventID, CodeStorage, err.Error()), false
		}
		next := dag.UpdateExtremities(current, pdu)
		err = p.store.PutEventAndState(detached, room, pdu, after, current, next)
		if err == nil {
			return Outcome{}, true
		}
		if !errors.Is(err, storage.ErrStaleExtremities) {
			return rejected(pdu.EventID, CodeStorage, err.Error()), false
		}
	}
	return rejected(pdu.EventID, CodeStorage, "forward extremities kept changing"), false
}

// claimedID best-effort extracts the event_id from bytes that failed
// validation, so the outcome can still name the event.
func claimedID(raw []byte) ref.EventID {
	var probe struct {
		EventID ref.EventID `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ref.EventID{}
	}
	return probe.EventID
}

func codeFor(err error) Code {
	switch {
	case errors.Is(err, event.ErrHashMismatch):
		return CodeBadHash
	case errors.Is(err, event.ErrBadSignature):
		return CodeBadSig
	default:
		return CodeMalformed
	}
}
