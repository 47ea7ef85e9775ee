// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/state"
)

// Memory is an in-process Store: maps under one mutex. Snapshots and
// events are shared by reference; callers treat them as immutable,
// which PDUs and state snapshots already are by convention.
type Memory struct {
	mu    sync.Mutex
	rooms map[ref.RoomID]*memoryRoom
}

type memoryRoom struct {
	events      map[ref.EventID]*event.PDU
	states      map[ref.EventID]state.Snapshot
	extremities []ref.EventID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[ref.RoomID]*memoryRoom)}
}

func (m *Memory) GetEvent(_ context.Context, room ref.RoomID, id ref.EventID) (*event.PDU, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	if r == nil {
		return nil, fmt.Errorf("event %s in %s: %w", id, room, ErrNotFound)
	}
	p, ok := r.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s in %s: %w", id, room, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) HasEvent(_ context.Context, room ref.RoomID, id ref.EventID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	if r == nil {
		return false, nil
	}
	_, ok := r.events[id]
	return ok, nil
}

func (m *Memory) StateAfter(_ context.Context, room ref.RoomID, id ref.EventID) (state.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	if r == nil {
		return state.Snapshot{}, fmt.Errorf("state after %s in %s: %w", id, room, ErrNotFound)
	}
	snapshot, ok := r.states[id]
	if !ok {
		return state.Snapshot{}, fmt.Errorf("state after %s in %s: %w", id, room, ErrNotFound)
	}
	return snapshot, nil
}

func (m *Memory) ForwardExtremities(_ context.Context, room ref.RoomID) ([]ref.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	if r == nil {
		return nil, nil
	}
	return append([]ref.EventID(nil), r.extremities...), nil
}

func (m *Memory) PutEventAndState(_ context.Context, room ref.RoomID, p *event.PDU, after state.Snapshot, prevExtrem, newExtrem []ref.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	if r == nil {
		r = &memoryRoom{
			events: make(map[ref.EventID]*event.PDU),
			states: make(map[ref.EventID]state.Snapshot),
		}
		m.rooms[room] = r
	}
	if !sameExtremities(r.extremities, prevExtrem) {
		return fmt.Errorf("committing %s in %s: %w", p.EventID, room, ErrStaleExtremities)
	}
	r.events[p.EventID] = p
	r.states[p.EventID] = after
	r.extremities = ref.SortEventIDs(append([]ref.EventID(nil), newExtrem...))
	return nil
}

func (m *Memory) RoomExists(_ context.Context, room ref.RoomID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[room]
	return r != nil && len(r.events) > 0, nil
}

func (m *Memory) Close() error { return nil }
