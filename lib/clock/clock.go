// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects [Real]; tests inject [NewFake] and advance it explicitly.
//
// The only place the ingestion core reads a clock is when stamping
// origin_server_ts on locally built events — the timestamp is advisory
// and never participates in ordering or authorization, which must stay
// pure functions of their inputs. Keeping even that one read behind
// Clock means no test ever depends on wall time.
package clock

import "time"

// Clock provides the current time. Production code injects Real();
// tests inject NewFake() with deterministic control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
