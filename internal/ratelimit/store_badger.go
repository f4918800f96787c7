// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// windowKeyPrefix namespaces limiter entries in a shared Badger database.
const windowKeyPrefix = "ratelimit:"

// BadgerStore implements WindowStore on BadgerDB. Entries carry a TTL one
// window past the last write, so expiry is native and Sweep is a no-op.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a Badger-backed window store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the stored timestamps for a key.
func (s *BadgerStore) Get(key string) ([]time.Time, error) {
	var nanos []int64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(windowKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get window: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &nanos)
		})
	})
	if err != nil {
		return nil, err
	}

	stamps := make([]time.Time, 0, len(nanos))
	for _, n := range nanos {
		stamps = append(stamps, time.Unix(0, n))
	}
	return stamps, nil
}

// Put stores a key's timestamps with a TTL one window past the last write.
func (s *BadgerStore) Put(key string, stamps []time.Time, ttl time.Duration) error {
	nanos := make([]int64, 0, len(stamps))
	for _, ts := range stamps {
		nanos = append(nanos, ts.UnixNano())
	}

	data, err := json.Marshal(nanos)
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(windowKeyPrefix+key), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Delete removes a key.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(windowKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Sweep is a no-op; Badger's TTL expires stale windows natively.
func (s *BadgerStore) Sweep(now time.Time) (int, error) {
	return 0, nil
}
