// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock for tests. Time stands still until Advance is
// called, and channels from After fire only when Advance reaches their
// deadline. Safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// timers is kept sorted by deadline; equal deadlines stay in
	// registration order.
	timers []fakeTimer

	// registered is closed and replaced whenever a timer is added.
	registered chan struct{}
}

type fakeTimer struct {
	deadline time.Time
	fire     chan time.Time
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial, registered: make(chan struct{})}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After fires immediately for d <= 0 without registering a timer.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	fire := make(chan time.Time, 1)
	if d <= 0 {
		fire <- c.now
		return fire
	}
	timer := fakeTimer{deadline: c.now.Add(d), fire: fire}
	at, _ := slices.BinarySearchFunc(c.timers, timer.deadline, func(t fakeTimer, deadline time.Time) int {
		if t.deadline.After(deadline) {
			return 1
		}
		return -1
	})
	c.timers = slices.Insert(c.timers, at, timer)
	close(c.registered)
	c.registered = make(chan struct{})
	return fire
}

// Advance moves the clock forward by d and fires every timer that is
// now due, earliest first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := 0
	for due < len(c.timers) && !c.timers[due].deadline.After(now) {
		due++
	}
	fired := slices.Clone(c.timers[:due])
	c.timers = slices.Delete(c.timers, 0, due)
	c.mu.Unlock()

	for _, timer := range fired {
		timer.fire <- now
	}
}

// AwaitTimers blocks until at least n timers are pending. Tests call it
// before Advance so the goroutine under test has reached its wait:
//
//	go pump.Run(ctx)
//	fakeClock.AwaitTimers(1)       // backing off
//	fakeClock.Advance(time.Second) // release it
func (c *FakeClock) AwaitTimers(n int) {
	for {
		c.mu.Lock()
		if len(c.timers) >= n {
			c.mu.Unlock()
			return
		}
		registered := c.registered
		c.mu.Unlock()
		<-registered
	}
}

// Pending returns the number of timers that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
