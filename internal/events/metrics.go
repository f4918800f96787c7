// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// submittedTotal counts event submissions by outcome.
	submittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_events_submitted_total",
			Help: "Total number of security event submissions by outcome",
		},
		[]string{"outcome"},
	)

	// breakerState reflects the delivery breaker: 0 closed, 1 half-open, 2 open.
	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeeper_events_breaker_state",
			Help: "Security event delivery circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
