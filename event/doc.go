// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the immutable room event (PDU): its wire
// shape, typed state content, redaction normalization, content
// hashing, identity computation, and ed25519 signature handling.
//
// An event's identity is a pure function of its content: the event ID
// is the SHA-256 of the redacted, signature-stripped canonical JSON
// form, encoded URL-safe base64 without padding and prefixed with '$'.
// Two events with identical content after the mandated field stripping
// are the same event, which is what makes ingestion idempotent across
// the federation.
//
// Everything in this package is a pure function over event data — no
// storage access, no clock reads, no network. [ParseAndValidate] is
// the single entry point for untrusted wire input: it checks
// structure, recomputes the content hash and event ID against the
// claimed values, and verifies the sender's server signature through
// a [KeyResolver].
//
// [Builder] constructs and finalizes locally originated events the
// way the ingestion testbed and the test suites need: fill the graph
// position, hash, sign with a [Keyring], derive the ID.
package event
