// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *fakeClock) *Limiter {
	l := New(NewMemoryStore())
	l.now = clock.Now
	return l
}

func TestCheckSlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	const limit = 3
	window := time.Minute

	for i, wantRemaining := range []int{2, 1, 0} {
		clock.Advance(time.Second)
		d := l.Check("k", limit, window)
		if !d.Allowed {
			t.Fatalf("request %d: denied, want allowed", i+1)
		}
		if d.Remaining != wantRemaining {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, d.Remaining, wantRemaining)
		}
	}

	clock.Advance(time.Second)
	d := l.Check("k", limit, window)
	if d.Allowed {
		t.Fatal("request 4: allowed, want denied")
	}
	if d.Remaining != 0 {
		t.Errorf("request 4: Remaining = %d, want 0", d.Remaining)
	}

	// The oldest stamp frees its slot once the window slides past it.
	clock.Advance(window)
	d = l.Check("k", limit, window)
	if !d.Allowed {
		t.Fatal("request after window: denied, want allowed")
	}
	if d.Remaining != limit-1 {
		t.Errorf("request after window: Remaining = %d, want %d", d.Remaining, limit-1)
	}
}

func TestCheckResetAtStable(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	window := time.Minute
	first := l.Check("k", 2, window)
	wantReset := clock.Now().Add(window)
	if !first.ResetAt.Equal(wantReset) {
		t.Fatalf("ResetAt = %v, want %v", first.ResetAt, wantReset)
	}

	// Denied checks must keep reporting the same reset time, anchored on the
	// oldest surviving stamp, not on the current time.
	clock.Advance(time.Second)
	l.Check("k", 2, window)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		d := l.Check("k", 2, window)
		if d.Allowed {
			t.Fatal("expected denial")
		}
		if !d.ResetAt.Equal(wantReset) {
			t.Errorf("denied check %d: ResetAt = %v, want %v", i+1, d.ResetAt, wantReset)
		}
	}
}

func TestCheckZeroLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	d := l.Check("k", 0, time.Minute)
	if d.Allowed {
		t.Fatal("zero limit must deny the first request")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
	if want := clock.Now().Add(time.Minute); !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, want)
	}
}

func TestCheckIndependentKeys(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	l.Check("a", 1, time.Minute)
	if d := l.Check("a", 1, time.Minute); d.Allowed {
		t.Fatal("key a should be exhausted")
	}
	if d := l.Check("b", 1, time.Minute); !d.Allowed {
		t.Fatal("key b must not share key a's window")
	}
}

func TestCheckConcurrentSameKey(t *testing.T) {
	l := New(NewMemoryStore())

	const limit = 10
	const workers = 50

	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("k", limit, time.Minute).Allowed {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	got := 0
	for range allowed {
		got++
	}
	if got != limit {
		t.Errorf("allowed %d concurrent requests, want exactly %d", got, limit)
	}
}

func TestSweepRemovesDrainedWindows(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	l := New(store)
	l.now = clock.Now

	l.Check("stale", 5, time.Minute)
	l.Check("fresh", 5, time.Hour)

	clock.Advance(2 * time.Minute)
	removed := l.Sweep()
	if removed != 1 {
		t.Errorf("Sweep removed %d keys, want 1", removed)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d keys after sweep, want 1", store.Len())
	}
}

func TestLatchPoolIsFixedSize(t *testing.T) {
	l := New(NewMemoryStore())

	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 4*latchShards; i++ {
		seen[l.latch(fmt.Sprintf("client-%d", i))] = struct{}{}
	}
	if len(seen) > latchShards {
		t.Errorf("latch pool grew to %d entries, cap is %d", len(seen), latchShards)
	}
	if l.latch("client-7") != l.latch("client-7") {
		t.Error("same key must map to the same latch")
	}
}
