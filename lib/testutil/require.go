// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the part of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch. A closed channel or
// no value within timeout fails the test.
//
//	message := testutil.RequireReceive(t, subscription.C, 5*time.Second, "first message")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", describe(what))
		}
		return v
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(what), timeout)
	}
	var zero T
	return zero
}

// RequireClosed drains ch until it closes and returns what it drained.
// The test fails if ch is still open after timeout.
//
//	testutil.RequireClosed(t, subscription.C, 5*time.Second, "subscription closed after Run")
func RequireClosed[T any](t TB, ch <-chan T, timeout time.Duration, what ...any) []T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	var drained []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return drained
			}
			drained = append(drained, v)
		case <-timer.C:
			t.Fatalf("%s: still open after %v (%d values drained)", describe(what), timeout, len(drained))
			return drained
		}
	}
}

// describe formats the trailing what arguments: a format string with
// args, or a single value.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "channel"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
