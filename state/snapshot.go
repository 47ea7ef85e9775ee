// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"slices"
	"strings"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// Key addresses one cell of room state.
type Key struct {
	Type     string `json:"type"`
	StateKey string `json:"state_key"`
}

// Compare orders keys by type, then state key.
func (k Key) Compare(other Key) int {
	if c := strings.Compare(k.Type, other.Type); c != 0 {
		return c
	}
	return strings.Compare(k.StateKey, other.StateKey)
}

// KeyOf returns the state cell p occupies. ok is false for non-state
// events.
func KeyOf(p *event.PDU) (Key, bool) {
	if !p.IsState() {
		return Key{}, false
	}
	return Key{Type: p.Type, StateKey: p.StateKeyValue()}, true
}

// Entry is one resolved state cell, used for deterministic
// serialization of a snapshot.
type Entry struct {
	Key
	EventID ref.EventID `json:"event_id"`
}

// Snapshot is an immutable view of room state at one graph position.
// The zero value is the empty state. Derive changed copies with
// [Snapshot.With]; the original is never modified.
type Snapshot struct {
	entries map[Key]ref.EventID
}

// New builds a snapshot from a key/ID map. The map is copied.
func New(entries map[Key]ref.EventID) Snapshot {
	if len(entries) == 0 {
		return Snapshot{}
	}
	copied := make(map[Key]ref.EventID, len(entries))
	for k, id := range entries {
		copied[k] = id
	}
	return Snapshot{entries: copied}
}

// FromEntries rebuilds a snapshot from its serialized form.
func FromEntries(entries []Entry) Snapshot {
	m := make(map[Key]ref.EventID, len(entries))
	for _, e := range entries {
		m[e.Key] = e.EventID
	}
	return New(m)
}

// Get returns the event ID holding key, if any.
func (s Snapshot) Get(k Key) (ref.EventID, bool) {
	id, ok := s.entries[k]
	return id, ok
}

// Len returns the number of state cells.
func (s Snapshot) Len() int { return len(s.entries) }

// With returns a copy of s with key set to id.
func (s Snapshot) With(k Key, id ref.EventID) Snapshot {
	copied := make(map[Key]ref.EventID, len(s.entries)+1)
	for existing, existingID := range s.entries {
		copied[existing] = existingID
	}
	copied[k] = id
	return Snapshot{entries: copied}
}

// Advance returns the snapshot after p: s itself for non-state
// events, otherwise s with p's cell replaced.
func (s Snapshot) Advance(p *event.PDU) Snapshot {
	k, ok := KeyOf(p)
	if !ok {
		return s
	}
	return s.With(k, p.EventID)
}

// Entries returns the cells sorted by key. The slice is fresh; the
// order is stable across servers, suitable for hashing and storage.
func (s Snapshot) Entries() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for k, id := range s.entries {
		entries = append(entries, Entry{Key: k, EventID: id})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.Key.Compare(b.Key)
	})
	return entries
}

// Equal reports whether two snapshots hold the same cells.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for k, id := range s.entries {
		if otherID, ok := other.entries[k]; !ok || otherID != id {
			return false
		}
	}
	return true
}
