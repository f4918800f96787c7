// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package events

import (
	"fmt"

	"github.com/tomtom215/gatekeeper/internal/logging"
)

// LogSink delivers events to the structured security log. It never fails,
// which keeps the delivery breaker closed; it exists so deployments without
// an external audit collaborator still record every event.
type LogSink struct {
	sl *logging.SecurityLogger
}

// NewLogSink creates a sink over the global security logger.
func NewLogSink() *LogSink {
	return &LogSink{sl: logging.NewSecurityLogger()}
}

// Deliver writes the event to the security log.
func (s *LogSink) Deliver(ev Event) error {
	details := make(map[string]string, len(ev.Details)+1)
	for k, v := range ev.Details {
		details[k] = fmt.Sprint(v)
	}
	details["event_id"] = ev.ID

	s.sl.LogRecord(&logging.SecurityRecord{
		Kind:      ev.Kind,
		CallerID:  ev.CallerID,
		Severity:  ev.Severity.String(),
		IPAddress: ev.IP,
		UserAgent: ev.UserAgent,
		Details:   details,
	})
	return nil
}
