// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sweepsTotal counts sweep passes by service and outcome.
	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_sweeps_total",
			Help: "Total number of maintenance sweep passes by service and outcome",
		},
		[]string{"sweep", "outcome"},
	)
)
