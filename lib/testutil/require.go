// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// failer is the subset of testing.TB these helpers need. Taking the
// interface instead of *testing.T keeps them usable from benchmarks.
type failer interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from ch within timeout, or fails the
// test. This encapsulates the timeout safety valve pattern so that
// individual tests do not need direct time.After calls.
//
//	result := testutil.RequireReceive(t, ch, 5*time.Second, "waiting for result")
func RequireReceive[T any](t failer, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(msgAndArgs))
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
	}
	panic("unreachable")
}

// RequireSend sends v on ch within timeout, or fails the test.
func RequireSend[T any](t failer, ch chan<- T, v T, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case ch <- v:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
	}
}

func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
