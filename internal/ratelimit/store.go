// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"sync"
	"time"
)

// WindowStore persists per-key request timestamp logs. Implementations do
// not need per-key atomicity; the Limiter serializes access per key.
type WindowStore interface {
	// Get returns the stored timestamps for a key, oldest first. A missing
	// key returns an empty slice and no error.
	Get(key string) ([]time.Time, error)

	// Put stores a key's timestamps. ttl is the window length; stores with
	// native expiry may drop the entry that long after the last write.
	Put(key string, stamps []time.Time, ttl time.Duration) error

	// Delete removes a key.
	Delete(key string) error

	// Sweep removes keys with no timestamp newer than now minus their
	// window and returns how many were removed. Stores with native expiry
	// may report zero.
	Sweep(now time.Time) (int, error)
}

// MemoryStore is the in-process WindowStore for single-instance deployments
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]memoryWindow
}

type memoryWindow struct {
	stamps []time.Time
	ttl    time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]memoryWindow)}
}

// Get returns the stored timestamps for a key.
func (s *MemoryStore) Get(key string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[key]
	if !ok {
		return nil, nil
	}
	out := make([]time.Time, len(w.stamps))
	copy(out, w.stamps)
	return out, nil
}

// Put stores a key's timestamps.
func (s *MemoryStore) Put(key string, stamps []time.Time, ttl time.Duration) error {
	kept := make([]time.Time, len(stamps))
	copy(kept, stamps)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[key] = memoryWindow{stamps: kept, ttl: ttl}
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep removes keys whose newest timestamp has left the window.
func (s *MemoryStore) Sweep(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if len(w.stamps) == 0 || !w.stamps[len(w.stamps)-1].After(now.Add(-w.ttl)) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}
