// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Hearth's standard CBOR encoding configuration.
//
// Hearth uses two serialization formats with a clear boundary:
//
//   - JSON for everything protocol-visible: events on the wire, the
//     canonical form that is hashed and signed (lib/canonical), and
//     cmd/hearthd input and output.
//   - CBOR for internal storage rows: state snapshots, forward
//     extremity sets, and other values the SQLite backend persists.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same snapshot always produces identical bytes regardless of which
// code path wrote it. Deterministic rows make backend conformance
// tests trivial byte comparisons.
//
// Struct tag rule: types persisted only by storage carry `cbor` tags;
// types that also cross the JSON boundary carry `json` tags, which
// fxamacker/cbor reads as a fallback. Never both on one field.
package codec
