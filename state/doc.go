// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package state models room state and resolves it across graph forks.
//
// A [Snapshot] is the immutable map from (event type, state key) to
// the event ID currently holding that cell. Every accepted event has
// a snapshot describing the room immediately after it; a non-state
// event shares its parent's.
//
// When the graph forks, sibling branches accumulate divergent
// snapshots. [Resolver.Resolve] merges them deterministically:
// entries all branches agree on pass through untouched, conflicting
// entries (plus the auth difference of the branches) are re-played
// through the authorization engine in a convergent order, and agreed
// entries win last. The output depends only on the set of input
// branches, never on arrival order, so every server converges on the
// same state. Results are memoized under a blake3 digest of the
// branch set.
package state
