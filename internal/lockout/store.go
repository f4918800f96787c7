// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package lockout

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a lockout record doesn't exist.
var ErrNotFound = errors.New("lockout record not found")

// retention is how long an unlocked record is kept after its last attempt
// before a sweep may remove it.
const retention = 24 * time.Hour

// Store defines the interface for lockout state persistence.
type Store interface {
	// Get retrieves a record by subject. Missing subjects return ErrNotFound.
	Get(ctx context.Context, subject string) (*Record, error)

	// Save persists a record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes a record. Missing subjects return ErrNotFound.
	Delete(ctx context.Context, subject string) error

	// CleanupExpired removes records whose locks have expired and that have
	// seen no attempts within the retention period.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore implements Store in process memory. Suitable for development
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates a new in-memory lockout store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Get retrieves a record.
func (s *MemoryStore) Get(ctx context.Context, subject string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[subject]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Save persists a record.
func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Subject] = copyRecord(rec)
	return nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[subject]; !ok {
		return ErrNotFound
	}
	delete(s.records, subject)
	return nil
}

// CleanupExpired removes stale, unlocked records.
func (s *MemoryStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := now.Add(-retention)
	count := 0
	for subject, rec := range s.records {
		if !rec.lockedAt(now) && rec.LastAttempt.Before(threshold) {
			delete(s.records, subject)
			count++
		}
	}
	return count, nil
}

// copyRecord creates a copy so callers cannot mutate stored state.
func copyRecord(rec *Record) *Record {
	copied := *rec
	return &copied
}
