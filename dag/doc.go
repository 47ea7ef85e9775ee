// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package dag maintains the per-room event graph: parent linkage,
// depth, forward extremities, and auth chains.
//
// Every room is an append-only directed acyclic graph. Each event
// names its parents in prev_events; events nobody references yet are
// the room's forward extremities and become the parents of the next
// event. Depth is a monotone level number over the graph, used only
// as a sort hint: causality lives in the edges.
//
// The package operates over an [EventSource] view so the same code
// serves the ingestion pipeline (backed by storage) and state
// resolution (backed by an in-memory batch).
package dag
