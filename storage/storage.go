// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
	"github.com/hearth-foundation/hearth/state"
)

var (
	// ErrNotFound marks a lookup for an event the store has never
	// accepted.
	ErrNotFound = errors.New("event not found")

	// ErrStaleExtremities marks a PutEventAndState whose expected
	// extremity set no longer matches the stored one: another commit
	// landed in between, and the caller must re-read.
	ErrStaleExtremities = errors.New("forward extremities changed under commit")
)

// Store is the persistence boundary of the ingestion pipeline. All
// methods are safe for concurrent use; only PutEventAndState writes.
type Store interface {
	// GetEvent returns an accepted event, or ErrNotFound.
	GetEvent(ctx context.Context, room ref.RoomID, id ref.EventID) (*event.PDU, error)

	// HasEvent reports whether the event has been accepted.
	HasEvent(ctx context.Context, room ref.RoomID, id ref.EventID) (bool, error)

	// StateAfter returns the resolved state immediately after the
	// event, persisted when it was accepted. ErrNotFound for unknown
	// events.
	StateAfter(ctx context.Context, room ref.RoomID, id ref.EventID) (state.Snapshot, error)

	// ForwardExtremities returns the room's current extremity set,
	// sorted. Empty for unknown rooms.
	ForwardExtremities(ctx context.Context, room ref.RoomID) ([]ref.EventID, error)

	// PutEventAndState atomically commits the event, its post-state,
	// and the extremity swap from prevExtrem to newExtrem. Fails with
	// ErrStaleExtremities if the stored extremities no longer equal
	// prevExtrem.
	PutEventAndState(ctx context.Context, room ref.RoomID, p *event.PDU, after state.Snapshot, prevExtrem, newExtrem []ref.EventID) error

	// RoomExists reports whether any event of the room has been
	// accepted.
	RoomExists(ctx context.Context, room ref.RoomID) (bool, error)

	// Close releases the backend. The store is unusable afterwards.
	Close() error
}

// sameExtremities compares two extremity sets ignoring order.
func sameExtremities(a, b []ref.EventID) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := ref.SortEventIDs(append([]ref.EventID(nil), a...))
	sortedB := ref.SortEventIDs(append([]ref.EventID(nil), b...))
	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}
	return true
}
