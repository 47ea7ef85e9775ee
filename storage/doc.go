// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage persists accepted events, their post-state
// snapshots, and each room's forward extremities.
//
// The [Store] interface is the pipeline's only view of persistence.
// Its one write, [Store.PutEventAndState], commits an event, the
// resolved state after it, and the extremity swap atomically, guarded
// by a compare-and-swap on the extremity set: if the stored set no
// longer matches what the caller read, the commit fails with
// [ErrStaleExtremities] and the caller re-reads. That guard is what
// lets the pipeline keep extremity math outside the store.
//
// Two backends ship: [Memory] for tests and ephemeral rooms, and
// [SQLite] for durable single-node deployments. Event bodies are
// stored as zstd-compressed JSON; snapshots and extremity sets as
// deterministic CBOR.
package storage
