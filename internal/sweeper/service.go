// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package sweeper runs periodic maintenance (rate-limit window pruning,
// lockout record cleanup) under a suture supervision tree, so a panicking
// sweep restarts instead of silently dying.
package sweeper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tomtom215/gatekeeper/internal/logging"
)

// SweepFunc performs one maintenance pass and returns how many entries it
// removed. Implementations must honor context cancellation.
type SweepFunc func(ctx context.Context) (int, error)

// Service wraps a SweepFunc as a supervised, ticker-driven service.
type Service struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
}

// NewService creates a sweep service that runs sweep every interval.
func NewService(name string, interval time.Duration, sweep SweepFunc) *Service {
	return &Service{
		name:     name,
		interval: interval,
		sweep:    sweep,
	}
}

// Serve implements suture.Service. It runs sweeps until the context is
// canceled. A failed sweep is logged and retried on the next tick; only a
// panic escapes to the supervisor.
func (s *Service) Serve(ctx context.Context) error {
	log := logging.With().Str("component", "sweeper").Str("sweep", s.name).Logger()
	log.Info().Dur("interval", s.interval).Msg("Sweep service started")

	// Stagger the first tick so multiple sweeps sharing a store don't fire
	// in lockstep after a restart.
	jitter := time.Duration(rand.Int64N(int64(s.interval) / 2))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Sweep failed")
				sweepsTotal.WithLabelValues(s.name, "error").Inc()
				continue
			}
			sweepsTotal.WithLabelValues(s.name, "ok").Inc()
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("Sweep completed")
			}
		}
	}
}

// String implements fmt.Stringer; suture uses it to name the service in logs.
func (s *Service) String() string {
	return "sweep-" + s.name
}
