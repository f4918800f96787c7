// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// lockoutKeyPrefix namespaces lockout entries in a shared Badger database.
const lockoutKeyPrefix = "lockout:"

// BadgerStore implements Store using BadgerDB for durable storage across
// restarts. Entries carry a TTL covering the lock plus the retention period,
// so expiry is native and CleanupExpired is a no-op.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a Badger-backed lockout store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get retrieves a record by subject.
func (s *BadgerStore) Get(ctx context.Context, subject string) (*Record, error) {
	var rec Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lockoutKeyPrefix + subject))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get lockout record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Save persists a record with a TTL covering the lock plus retention.
func (s *BadgerStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal lockout record: %w", err)
	}

	ttl := retention
	if remaining := time.Until(rec.LockedUntil); remaining > 0 {
		ttl += remaining
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(lockoutKeyPrefix+rec.Subject), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Delete removes a record.
func (s *BadgerStore) Delete(ctx context.Context, subject string) error {
	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(lockoutKeyPrefix + subject)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// CleanupExpired is a no-op; Badger's TTL expires stale records natively.
func (s *BadgerStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
