// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scansTotal counts scans by resulting risk level, plus "degraded" for
	// scans that fell back to the basic pattern pass.
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_content_scans_total",
			Help: "Total number of content scans by outcome",
		},
		[]string{"outcome"},
	)
)
