// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// RoomID is a validated room ID (e.g., "!abc123:hearth.local").
//
// Room IDs start with '!' and contain a ':' separating the opaque
// local part from the server name of the server that created the
// room. The creating server's name matters to the authorization
// engine: a room-creation event is only valid when the sender's
// server matches the room's server.
//
// RoomID is an immutable value type and is safe to use as a map key.
// The zero value is not valid; use IsZero to check.
type RoomID struct {
	id     string
	server string
}

// ParseRoomID validates and wraps a raw room ID string. Returns an
// error if the string is empty, doesn't start with '!', or is missing
// the ':server' suffix.
func ParseRoomID(raw string) (RoomID, error) {
	_, server, err := parseSigilID('!', raw)
	if err != nil {
		return RoomID{}, err
	}
	if err := validateServer(server); err != nil {
		return RoomID{}, fmt.Errorf("room ID %q: %w", raw, err)
	}
	return RoomID{id: raw, server: server}, nil
}

// MustParseRoomID is like ParseRoomID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseRoomID(raw string) RoomID {
	r, err := ParseRoomID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomID(%q): %v", raw, err))
	}
	return r
}

// String returns the full room ID string (e.g., "!abc123:hearth.local").
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is the zero value (uninitialized).
func (r RoomID) IsZero() bool { return r.id == "" }

// Server returns the server name portion of the room ID (after the
// ':'). Panics if called on a zero-value RoomID.
func (r RoomID) Server() string {
	if r.id == "" {
		panic("RoomID.Server called on zero value")
	}
	return r.server
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (r RoomID) MarshalText() ([]byte, error) {
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// room ID format. An empty input produces the zero value.
func (r *RoomID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomID{}
		return nil
	}
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
