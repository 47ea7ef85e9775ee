// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the rule-based authorization engine: given
// an event and the room state visible at its graph position, decide
// accept or reject.
//
// [Authorize] is a pure function of (event, state view). It reads no
// clock, no randomness, no storage, no network — every piece of state
// it may need is materialized into a [StateProvider] by the caller
// before the decision. That purity is what lets state resolution
// replay authorization deterministically on every server in the
// federation and converge.
//
// The rule sets are keyed by event type and evaluated first-match:
// room creation, membership transitions, power-level changes, other
// state events, then the default send rule for timeline events. Every
// rejection carries a machine-readable [Reason] plus human detail;
// reasons are stable across releases because peers log and compare
// them.
package auth
