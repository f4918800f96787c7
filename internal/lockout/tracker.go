// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package lockout tracks failed authentication attempts per identifier and
// applies progressive lockouts.
//
// Per-identifier state machine: Clean -> Accumulating -> Locked -> (after
// expiry) Accumulating. Each lockout cycle escalates: the duration is
// base * multiplier^level, capped at a maximum, and the level only increases.
// A recorded success deletes the record, resetting both the attempt count
// and the escalation level. The identifier's meaning (email, user id, IP)
// is the caller's concern; the tracker is agnostic to it.
package lockout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/logging"
)

// Record tracks failed attempts for one identifier.
type Record struct {
	Subject      string    `json:"subject"`
	Attempts     int       `json:"attempts"`
	LastAttempt  time.Time `json:"last_attempt"`
	LockedUntil  time.Time `json:"locked_until"`
	LockoutLevel int       `json:"lockout_level"`
}

// lockedAt reports whether the record is locked at the given instant.
func (r *Record) lockedAt(now time.Time) bool {
	return now.Before(r.LockedUntil)
}

// FailureResult is the outcome of recording one failed attempt.
type FailureResult struct {
	// Locked is true when the identifier is now (or still) locked.
	Locked bool
	// LockoutDuration is the remaining lockout when Locked.
	LockoutDuration time.Duration
	// Attempts is the failed-attempt count within the current window.
	Attempts int
}

// LockStatus is the outcome of a lockout query.
type LockStatus struct {
	Locked    bool
	Remaining time.Duration
	Attempts  int
}

// progressiveDelays is the fixed per-attempt response delay table, indexed
// by min(attempt-1, 4). Used by callers to slow brute forcing below the
// lockout threshold; independent of the lockout mechanism itself.
var progressiveDelays = [...]time.Duration{
	0,
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// latchShards sizes the fixed latch pool. Latches are sharded by subject
// hash rather than allocated per subject so latch memory stays constant no
// matter how many identifiers the tracker ever sees.
const latchShards = 128

// Tracker applies the lockout policy over a Store.
type Tracker struct {
	cfg   config.LockoutPolicy
	store Store
	log   zerolog.Logger

	// latches serializes read-modify-write per subject. Subjects sharing a
	// shard contend but stay correct.
	latches [latchShards]sync.Mutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewTracker creates a tracker with the given policy and store.
func NewTracker(cfg config.LockoutPolicy, store Store) *Tracker {
	return &Tracker{
		cfg:   cfg,
		store: store,
		log:   logging.With().Str("component", "lockout").Logger(),
		now:   time.Now,
	}
}

// RecordFailure records one failed attempt for the identifier.
//
// If the identifier is locked and the lock has not expired, the attempt
// counter is not incremented and the remaining lockout is returned. If the
// previous failure is older than the attempt window, the counter restarts
// from zero before incrementing.
func (t *Tracker) RecordFailure(ctx context.Context, identifier string) (FailureResult, error) {
	latch := t.latch(identifier)
	latch.Lock()
	defer latch.Unlock()

	now := t.now()

	rec, err := t.getOrCreate(ctx, identifier)
	if err != nil {
		return FailureResult{}, err
	}

	if rec.lockedAt(now) {
		return FailureResult{
			Locked:          true,
			LockoutDuration: rec.LockedUntil.Sub(now),
			Attempts:        rec.Attempts,
		}, nil
	}

	// Stale-window reset: failures outside the window no longer count.
	if !rec.LastAttempt.IsZero() && now.Sub(rec.LastAttempt) > t.cfg.AttemptWindow {
		rec.Attempts = 0
	}

	rec.Attempts++
	rec.LastAttempt = now
	failuresTotal.Inc()

	if rec.Attempts < t.cfg.MaxAttempts {
		if err := t.store.Save(ctx, rec); err != nil {
			return FailureResult{}, err
		}
		return FailureResult{Attempts: rec.Attempts}, nil
	}

	duration := t.lockoutDuration(rec.LockoutLevel)
	rec.LockedUntil = now.Add(duration)
	rec.LockoutLevel++
	attempts := rec.Attempts
	rec.Attempts = 0 // next cycle starts fresh after expiry

	if err := t.store.Save(ctx, rec); err != nil {
		return FailureResult{}, err
	}

	lockoutsTotal.Inc()
	t.log.Warn().
		Str("subject", logging.SanitizeUserID(identifier)).
		Dur("duration", duration).
		Int("level", rec.LockoutLevel).
		Msg("identifier locked out")

	return FailureResult{
		Locked:          true,
		LockoutDuration: duration,
		Attempts:        attempts,
	}, nil
}

// getOrCreate retrieves an existing record or creates a fresh one.
func (t *Tracker) getOrCreate(ctx context.Context, subject string) (*Record, error) {
	rec, err := t.store.Get(ctx, subject)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if rec == nil {
		rec = &Record{Subject: subject}
	}
	return rec, nil
}

// RecordFailureFrom records a failure for the identifier and, when TrackByIP
// is enabled, also for a composed "ip:" subject. This blunts distributed
// guessing that rotates identifiers from a single address. Returns the
// identifier's result; an IP-side lockout is reported as locked too.
func (t *Tracker) RecordFailureFrom(ctx context.Context, identifier, ip string) (FailureResult, error) {
	res, err := t.RecordFailure(ctx, identifier)
	if err != nil || !t.cfg.TrackByIP || ip == "" {
		return res, err
	}

	ipRes, err := t.RecordFailure(ctx, "ip:"+ip)
	if err != nil {
		return res, err
	}
	if ipRes.Locked && !res.Locked {
		return ipRes, nil
	}
	return res, nil
}

// Status reports whether the identifier is locked. An expired lock is
// lazily cleared without resetting the attempt count or the escalation
// level, preserving the backoff history.
func (t *Tracker) Status(ctx context.Context, identifier string) (LockStatus, error) {
	latch := t.latch(identifier)
	latch.Lock()
	defer latch.Unlock()

	now := t.now()

	rec, err := t.store.Get(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LockStatus{}, nil
		}
		return LockStatus{}, err
	}

	if rec.lockedAt(now) {
		return LockStatus{
			Locked:    true,
			Remaining: rec.LockedUntil.Sub(now),
			Attempts:  rec.Attempts,
		}, nil
	}

	if !rec.LockedUntil.IsZero() {
		rec.LockedUntil = time.Time{}
		if err := t.store.Save(ctx, rec); err != nil {
			return LockStatus{}, err
		}
	}

	return LockStatus{Attempts: rec.Attempts}, nil
}

// RecordSuccess deletes the identifier's record, fully resetting attempts
// and escalation.
func (t *Tracker) RecordSuccess(ctx context.Context, identifier string) error {
	latch := t.latch(identifier)
	latch.Lock()
	defer latch.Unlock()

	if err := t.store.Delete(ctx, identifier); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// ProgressiveDelay returns the response delay for the given attempt number
// (1-based). Attempt numbers beyond the table saturate at the last entry.
func ProgressiveDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(progressiveDelays) {
		idx = len(progressiveDelays) - 1
	}
	return progressiveDelays[idx]
}

// CleanupExpired purges records whose locks have expired and that have seen
// no recent attempts. Intended to run periodically.
func (t *Tracker) CleanupExpired(ctx context.Context) (int, error) {
	count, err := t.store.CleanupExpired(ctx, t.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		cleanedRecords.Add(float64(count))
	}
	return count, nil
}

// lockoutDuration computes base * multiplier^level, capped at the maximum.
func (t *Tracker) lockoutDuration(level int) time.Duration {
	duration := t.cfg.BaseLockout
	for i := 0; i < level; i++ {
		duration *= time.Duration(t.cfg.Multiplier)
		if duration >= t.cfg.MaxLockout {
			return t.cfg.MaxLockout
		}
	}
	if duration > t.cfg.MaxLockout {
		return t.cfg.MaxLockout
	}
	return duration
}

// latch returns the subject's latch shard (FNV-1a over the subject).
func (t *Tracker) latch(subject string) *sync.Mutex {
	const offset, prime = 2166136261, 16777619
	h := uint32(offset)
	for i := 0; i < len(subject); i++ {
		h ^= uint32(subject[i])
		h *= prime
	}
	return &t.latches[h%latchShards]
}
