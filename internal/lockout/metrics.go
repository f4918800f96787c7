// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package lockout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// failuresTotal counts recorded failed attempts.
	failuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_lockout_failures_total",
			Help: "Total number of recorded failed attempts",
		},
	)

	// lockoutsTotal counts lockouts applied.
	lockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_lockouts_total",
			Help: "Total number of lockouts applied",
		},
	)

	// cleanedRecords counts records removed by sweeps.
	cleanedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_lockout_cleaned_records_total",
			Help: "Total number of lockout records removed by sweeps",
		},
	)
)
