// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"slices"
	"strings"
)

// EventID is a validated event ID (e.g., "$WCraVpPZe...").
//
// Hearth mints event IDs itself: the ID is the URL-safe unpadded
// base64 encoding of the SHA-256 hash of the redacted canonical event,
// prefixed with '$'. IDs received from peers are treated as claims and
// recomputed during validation; the only structural requirement here
// is the '$' prefix with at least one character after it.
//
// EventID is an immutable value type and is safe to use as a map key.
// The zero value is not valid; use IsZero to check.
type EventID struct {
	id string
}

// ParseEventID validates and wraps a raw event ID string. Returns an
// error if the string is empty, doesn't start with '$', or has nothing
// after the '$' prefix.
func ParseEventID(raw string) (EventID, error) {
	if raw == "" {
		return EventID{}, fmt.Errorf("empty event ID")
	}
	if raw[0] != '$' {
		return EventID{}, fmt.Errorf("event ID must start with '$': %q", raw)
	}
	if len(raw) < 2 {
		return EventID{}, fmt.Errorf("event ID has no content after '$': %q", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID is like ParseEventID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseEventID(raw string) EventID {
	e, err := ParseEventID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseEventID(%q): %v", raw, err))
	}
	return e
}

// String returns the full event ID string.
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is the zero value (uninitialized).
func (e EventID) IsZero() bool { return e.id == "" }

// Compare orders event IDs lexicographically. This is the fixed
// tie-break used wherever independently operated servers must converge
// on the same ordering (topological sort, state resolution).
func (e EventID) Compare(other EventID) int {
	return strings.Compare(e.id, other.id)
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// event ID format. An empty input produces the zero value.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// SortEventIDs sorts ids in place into the canonical lexicographic
// order and removes duplicates, returning the shortened slice.
func SortEventIDs(ids []EventID) []EventID {
	slices.SortFunc(ids, EventID.Compare)
	return slices.Compact(ids)
}
