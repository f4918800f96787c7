// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decisionsTotal counts rate-limit checks by outcome.
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_decisions_total",
			Help: "Total number of rate limit decisions by outcome",
		},
		[]string{"outcome"},
	)

	// sweptKeys counts window keys removed by sweeps.
	sweptKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_swept_keys_total",
			Help: "Total number of rate limit window keys removed by sweeps",
		},
	)
)
