// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package events

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/logging"
)

// newBreaker creates the delivery circuit breaker. Uses gobreaker v2's
// generic API; deliveries carry no payload, so the type parameter is struct{}.
func newBreaker(cfg config.EventsPolicy) *gobreaker.CircuitBreaker[struct{}] {
	settings := gobreaker.Settings{
		Name:        "event-sink",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event delivery breaker state change")
			breakerState.Set(stateValue(to))
		},
	}

	return gobreaker.NewCircuitBreaker[struct{}](settings)
}

// stateValue maps a breaker state to a gauge value: 0 closed, 1 half-open, 2 open.
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
