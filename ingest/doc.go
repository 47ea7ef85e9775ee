// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest runs untrusted events through the acceptance
// pipeline: validate, link into the room graph, resolve the state
// before the event, authorize, and persist atomically.
//
// A [Pipeline] owns one worker goroutine per room, created on first
// use. Everything inside a room is serialized through its worker, so
// graph and extremity updates never race; different rooms proceed in
// parallel. Submission blocks until the batch is fully decided.
//
// Each submitted event gets exactly one [Outcome]: accepted, rejected
// with a stable HEARTH_* code, or parked as missing ancestors with
// the IDs a federation fetch would need. Known events are reported
// accepted again without re-running authorization; acceptance is
// permanent and re-submission must be harmless.
package ingest
