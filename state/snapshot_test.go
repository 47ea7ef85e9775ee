// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"slices"
	"testing"

	"github.com/hearth-foundation/hearth/lib/ref"
)

func TestSnapshotWithIsImmutable(t *testing.T) {
	base := New(map[Key]ref.EventID{
		{Type: "m.room.create"}: ref.MustParseEventID("$create"),
	})
	derived := base.With(Key{Type: "m.room.name"}, ref.MustParseEventID("$name"))

	if base.Len() != 1 {
		t.Errorf("base grew to %d cells", base.Len())
	}
	if derived.Len() != 2 {
		t.Errorf("derived has %d cells, want 2", derived.Len())
	}
	if _, ok := base.Get(Key{Type: "m.room.name"}); ok {
		t.Error("base sees the derived cell")
	}
}

func TestSnapshotEntriesSorted(t *testing.T) {
	s := New(map[Key]ref.EventID{
		{Type: "m.room.name"}:                  ref.MustParseEventID("$n"),
		{Type: "m.room.create"}:                ref.MustParseEventID("$c"),
		{Type: "m.room.member", StateKey: "b"}: ref.MustParseEventID("$mb"),
		{Type: "m.room.member", StateKey: "a"}: ref.MustParseEventID("$ma"),
	})
	entries := s.Entries()
	sorted := slices.IsSortedFunc(entries, func(a, b Entry) int {
		return a.Key.Compare(b.Key)
	})
	if !sorted {
		t.Errorf("entries not sorted: %v", entries)
	}
	if !FromEntries(entries).Equal(s) {
		t.Error("FromEntries round trip lost cells")
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := New(map[Key]ref.EventID{{Type: "m.room.create"}: ref.MustParseEventID("$c")})
	b := New(map[Key]ref.EventID{{Type: "m.room.create"}: ref.MustParseEventID("$c")})
	c := New(map[Key]ref.EventID{{Type: "m.room.create"}: ref.MustParseEventID("$other")})
	if !a.Equal(b) {
		t.Error("identical snapshots compare unequal")
	}
	if a.Equal(c) {
		t.Error("different snapshots compare equal")
	}
	if a.Equal(Snapshot{}) {
		t.Error("non-empty equals empty")
	}
}
