// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package lockout

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatekeeper/internal/logging"
)

// SubjectFunc derives the lockout subject for a request. Returning "" skips
// the check for that request.
type SubjectFunc func(r *http.Request) string

// Middleware rejects requests for currently locked subjects before the
// wrapped handler (typically credential verification) runs. Tracker errors
// fail open: authentication still gets its chance, and the error is logged.
func Middleware(t *Tracker, subjectFn SubjectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := subjectFn(r)
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			status, err := t.Status(r.Context(), subject)
			if err != nil {
				logging.Error().Err(err).Msg("Error checking lockout")
				next.ServeHTTP(w, r)
				return
			}

			if status.Locked {
				writeLockedResponse(w, status.Remaining)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeLockedResponse writes a standardized lockout response.
func writeLockedResponse(w http.ResponseWriter, remaining time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(remaining.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":            "Account temporarily locked",
		"retry_after_secs": int(remaining.Seconds()),
		"message":          fmt.Sprintf("Too many failed attempts. Try again in %v", remaining.Round(time.Second)),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Error encoding lockout response")
	}
}
