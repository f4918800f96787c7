// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package events

import (
	"time"

	"github.com/tomtom215/gatekeeper/internal/risk"
)

// Event kinds emitted by the validation and abuse-mitigation components.
const (
	KindUploadAccepted  = "upload_accepted"
	KindUploadRejected  = "upload_rejected"
	KindRateLimited     = "rate_limited"
	KindAccountLocked   = "account_locked"
	KindLockoutCleared  = "lockout_cleared"
	KindArtifactCleanup = "artifact_cleanup_failed"
)

// Event is one security-relevant occurrence.
type Event struct {
	// ID is assigned on submission when empty.
	ID string `json:"id"`
	// Kind is the event type.
	Kind string `json:"kind"`
	// CallerID identifies the acting user or client, if known.
	CallerID string `json:"caller_id,omitempty"`
	// Severity is the event severity.
	Severity risk.Level `json:"severity"`
	// IP is the client address, if known.
	IP string `json:"ip,omitempty"`
	// UserAgent is the client user agent, if known.
	UserAgent string `json:"user_agent,omitempty"`
	// Details carries structured, event-specific fields.
	Details map[string]any `json:"details,omitempty"`
	// At is assigned on submission when zero.
	At time.Time `json:"at"`
}

// Sink receives events for delivery. Implementations may buffer, batch or
// forward; they must not call back into the emitter.
type Sink interface {
	Deliver(Event) error
}
