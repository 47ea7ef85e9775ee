// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Hearth packages.
//
// [RequireReceive] and [RequireSend] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests never hang when a pipeline worker misbehaves. These are the
// only place in the test suite where real wall-clock timeouts are
// used.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package depends on no other Hearth packages.
package testutil
