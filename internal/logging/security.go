// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityRecord is the wire shape of a security event as it reaches the log.
// Sensitive values are sanitized before emission.
type SecurityRecord struct {
	// Kind is the event type (e.g., "upload_rejected", "account_locked").
	Kind string
	// CallerID identifies the acting user or client (if known).
	CallerID string
	// Severity is the event severity name (low, medium, high, critical).
	Severity string
	// IPAddress is the client's IP address.
	IPAddress string
	// UserAgent is the client's user agent (truncated).
	UserAgent string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger writes security events with automatic sanitization of
// caller identifiers and sensitive detail values.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "security").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Logger(),
	}
}

// LogRecord logs a security record with automatic sanitization.
func (l *SecurityLogger) LogRecord(rec *SecurityRecord) {
	e := l.logger.Info().
		Str("event", rec.Kind).
		Str("severity", rec.Severity)

	if rec.CallerID != "" {
		e = e.Str("caller_id", SanitizeUserID(rec.CallerID))
	}
	if rec.IPAddress != "" {
		e = e.Str("ip", rec.IPAddress)
	}
	if rec.UserAgent != "" {
		e = e.Str("user_agent", truncateString(rec.UserAgent, 100))
	}
	for k, v := range rec.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("security event")
}

// SanitizeUserID masks a user ID for privacy.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeValue sanitizes a detail value based on its key name.
func SanitizeValue(key, value string) string {
	sensitiveKeys := map[string]bool{
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"apikey":        true,
		"authorization": true,
		"bearer":        true,
		"cookie":        true,
		"session":       true,
		"session_id":    true,
	}

	if sensitiveKeys[strings.ToLower(key)] {
		return "***"
	}

	// Email-like values get the email mask
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}

	return truncateString(value, 200)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
