// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so retry backoff can
// be tested without sleeping.
//
// Code that waits accepts a [Clock] instead of calling time.After
// directly. [Real] wraps the time package. [Fake] returns a
// [FakeClock] that only moves when Advance is called; AwaitTimers
// closes the race between the goroutine registering a wait and the test
// advancing past it.
package clock
