// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identifiers for the
// Hearth room graph: event IDs, room IDs, user IDs, and server names.
//
// Every identifier is validated at construction and immutable
// afterwards. The zero value of each type is not a valid identifier;
// use IsZero to check. Identifiers are parsed at the boundary (wire
// input, configuration, storage rows) and passed through the core as
// typed values, so the interior of the engine never handles raw
// strings.
//
// Event IDs are the one identifier Hearth mints itself: they are the
// URL-safe base64 SHA-256 of the redacted canonical event, prefixed
// with '$'. Everything else (room IDs, user IDs, server names) arrives
// from callers or peers and is treated as opaque once validated.
//
// JSON marshaling uses the full Matrix identifier form via
// encoding.TextMarshaler, so these types drop into event structs and
// CBOR storage rows without adapters.
package ref
