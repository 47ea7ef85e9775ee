// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID is a validated user ID (e.g., "@alice:hearth.local").
//
// A user ID always starts with '@' and contains a ':' separating the
// localpart from the server name. Hearth validates the structural
// format only — it accepts any well-formed user ID, local or remote,
// since membership and power-level state routinely reference users on
// other servers.
//
// UserID is an immutable value type and is safe to use as a map key.
// The zero value is not valid; use IsZero to check.
type UserID struct {
	id     string
	server string
}

// ParseUserID validates and wraps a raw user ID string. Returns an
// error if the string is empty, doesn't start with '@', has an empty
// localpart, or is missing the ':server' suffix.
func ParseUserID(raw string) (UserID, error) {
	_, server, err := parseSigilID('@', raw)
	if err != nil {
		return UserID{}, err
	}
	if err := validateServer(server); err != nil {
		return UserID{}, fmt.Errorf("user ID %q: %w", raw, err)
	}
	return UserID{id: raw, server: server}, nil
}

// MustParseUserID is like ParseUserID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseUserID(raw string) UserID {
	u, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return u
}

// String returns the full user ID string (e.g., "@alice:hearth.local").
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// Server returns the server name portion of the user ID (after the
// ':'). Signature verification resolves the sender's identity keys by
// this name. Panics if called on a zero-value UserID.
func (u UserID) Server() string {
	if u.id == "" {
		panic("UserID.Server called on zero value")
	}
	return u.server
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// user ID format. An empty input produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
