// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return db
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store := NewBadgerStore(openTestBadger(t))

	base := time.Now().Truncate(time.Nanosecond)
	stamps := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}
	if err := store.Put("k", stamps, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != len(stamps) {
		t.Fatalf("got %d stamps, want %d", len(got), len(stamps))
	}
	for i := range stamps {
		if !got[i].Equal(stamps[i]) {
			t.Errorf("stamp %d = %v, want %v", i, got[i], stamps[i])
		}
	}
}

func TestBadgerStoreMissingKey(t *testing.T) {
	store := NewBadgerStore(openTestBadger(t))

	got, err := store.Get("absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestBadgerStoreDelete(t *testing.T) {
	store := NewBadgerStore(openTestBadger(t))

	if err := store.Put("k", []time.Time{time.Now()}, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v after delete, want empty", got)
	}
}

func TestBadgerStoreSweepIsNoop(t *testing.T) {
	store := NewBadgerStore(openTestBadger(t))

	if err := store.Put("k", []time.Time{time.Now().Add(-time.Hour)}, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	removed, err := store.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("Sweep removed %d, want 0 (TTL expiry is native)", removed)
	}
}

func TestLimiterOverBadger(t *testing.T) {
	l := New(NewBadgerStore(openTestBadger(t)))

	for i := 0; i < 2; i++ {
		if d := l.Check("k", 2, time.Minute); !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if d := l.Check("k", 2, time.Minute); d.Allowed {
		t.Fatal("third request allowed, want denied")
	}
}
