// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package canonical produces the canonical JSON form used for event
// hashing and signing.
//
// Canonical JSON is the protocol's equality definition: two events are
// the same event exactly when their canonical encodings hash to the
// same value, so the encoding must be bit-for-bit reproducible across
// independently operated servers. The rules:
//
//   - Object keys sorted by byte value, no duplicates.
//   - No insignificant whitespace.
//   - Integers only, in shortest decimal form, within ±2^53-1.
//     Floats are rejected outright rather than rounded.
//   - No HTML escaping ('<', '>', '&' appear literally).
//   - Strings use the shortest escape forms encoding/json emits with
//     HTML escaping disabled.
//
// [Marshal] accepts any JSON-marshalable Go value; it round-trips the
// value through encoding/json first, so struct tags behave exactly as
// they do elsewhere. [MarshalRaw] canonicalizes an already-encoded
// JSON document, which is the path taken for event content received
// off the wire.
package canonical
