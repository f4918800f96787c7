// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "***"},
		{"12345678", "***"},
		{"user-12345678", "user...5678"},
	}
	for _, tt := range tests {
		if got := SanitizeUserID(tt.in); got != tt.want {
			t.Errorf("SanitizeUserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"no-at-sign", "***"},
		{"@example.com", "***"},
		{"ab@example.com", "***@example.com"},
		{"john.doe@example.com", "jo***@example.com"},
	}
	for _, tt := range tests {
		if got := SanitizeEmail(tt.in); got != tt.want {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := SanitizeValue("password", "hunter2"); got != "***" {
		t.Errorf("sensitive key leaked: %q", got)
	}
	if got := SanitizeValue("Token", "abc"); got != "***" {
		t.Errorf("key match must be case-insensitive: %q", got)
	}
	if got := SanitizeValue("contact", "john.doe@example.com"); got != "jo***@example.com" {
		t.Errorf("email-like value not masked: %q", got)
	}
	long := strings.Repeat("x", 300)
	if got := SanitizeValue("note", long); len(got) != 203 {
		t.Errorf("long value not truncated: len=%d", len(got))
	}
}

func TestLogRecordSanitizes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sl := NewSecurityLoggerWithLogger(logger)

	sl.LogRecord(&SecurityRecord{
		Kind:      "upload_rejected",
		CallerID:  "user-12345678",
		Severity:  "high",
		IPAddress: "203.0.113.9",
		UserAgent: "curl/8.0",
		Details: map[string]string{
			"token":  "super-secret-token",
			"reason": "content_threat_detected",
		},
	})

	out := buf.String()
	if strings.Contains(out, "user-12345678") {
		t.Error("raw caller id leaked into the log")
	}
	if strings.Contains(out, "super-secret-token") {
		t.Error("sensitive detail leaked into the log")
	}
	for _, want := range []string{"upload_rejected", "high", "203.0.113.9", "content_threat_detected"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
