// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package ratelimit implements sliding-window-log rate limiting keyed by an
// arbitrary string.
//
// Each key holds the timestamps of its requests within the trailing window;
// a request is allowed when the pruned count is under the limit. Distinct
// keys are fully independent. Key composition is the caller's convention,
// e.g. "upload:203.0.113.9:/api/avatar", so anonymous and authenticated
// traffic and different endpoints do not share buckets.
//
// The window log is exact, not bucket-approximated: Remaining must be
// precise and ResetAt must be stable across repeated calls within the same
// window (anchored on the oldest surviving timestamp, never recomputed from
// the current time) so client-visible reset timers do not jitter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatekeeper/internal/logging"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	// Allowed is false when the request exceeds the limit.
	Allowed bool
	// Remaining is how many further requests the window admits. Never
	// negative.
	Remaining int
	// ResetAt is when the window frees a slot: the oldest surviving
	// timestamp plus the window.
	ResetAt time.Time
}

// latchShards sizes the fixed latch pool. Latches are sharded by key hash
// rather than allocated per key so latch memory stays constant no matter how
// many distinct keys pass through the limiter's lifetime.
const latchShards = 128

// Limiter checks requests against per-key sliding windows.
type Limiter struct {
	store WindowStore
	log   zerolog.Logger

	// latches serializes read-modify-write per key so concurrent requests
	// for the same key cannot undercount. Keys sharing a shard contend but
	// stay correct.
	latches [latchShards]sync.Mutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates a limiter over the given store.
func New(store WindowStore) *Limiter {
	return &Limiter{
		store: store,
		log:   logging.With().Str("component", "ratelimit").Logger(),
		now:   time.Now,
	}
}

// Check records a request attempt for key and decides whether it is allowed
// under limit requests per window. A limit of zero (or less) rejects every
// request, including the first.
func (l *Limiter) Check(key string, limit int, window time.Duration) Decision {
	latch := l.latch(key)
	latch.Lock()
	defer latch.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	stamps, err := l.store.Get(key)
	if err != nil {
		// Absence or store trouble is never an error for the caller;
		// treat it as no prior activity.
		l.log.Error().Err(err).Str("key", key).Msg("window store read failed")
		stamps = nil
	}

	pruned := prune(stamps, cutoff)

	if limit <= 0 {
		l.put(key, pruned, window)
		decisionsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}
	}

	if len(pruned) >= limit {
		l.put(key, pruned, window)
		decisionsTotal.WithLabelValues("denied").Inc()
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   pruned[0].Add(window),
		}
	}

	pruned = append(pruned, now)
	l.put(key, pruned, window)
	decisionsTotal.WithLabelValues("allowed").Inc()
	return Decision{
		Allowed:   true,
		Remaining: limit - len(pruned),
		ResetAt:   pruned[0].Add(window),
	}
}

// Sweep removes keys whose windows have fully drained. Intended to run
// periodically; returns the number of keys removed.
func (l *Limiter) Sweep() int {
	removed, err := l.store.Sweep(l.now())
	if err != nil {
		l.log.Error().Err(err).Msg("window store sweep failed")
		return 0
	}
	if removed > 0 {
		sweptKeys.Add(float64(removed))
	}
	return removed
}

// put persists a window, logging rather than surfacing store failures.
func (l *Limiter) put(key string, stamps []time.Time, window time.Duration) {
	if len(stamps) == 0 {
		if err := l.store.Delete(key); err != nil {
			l.log.Error().Err(err).Str("key", key).Msg("window store delete failed")
		}
		return
	}
	if err := l.store.Put(key, stamps, window); err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("window store write failed")
	}
}

// latch returns the key's latch shard (FNV-1a over the key).
func (l *Limiter) latch(key string) *sync.Mutex {
	const offset, prime = 2166136261, 16777619
	h := uint32(offset)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= prime
	}
	return &l.latches[h%latchShards]
}

// prune drops timestamps at or before the cutoff. Stamps are stored oldest
// first, so this is a single scan for the first survivor.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range stamps {
		if ts.After(cutoff) {
			return stamps[i:]
		}
	}
	return nil
}
