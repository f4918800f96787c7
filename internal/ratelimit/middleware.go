// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatekeeper/internal/logging"
)

// KeyFunc derives the rate-limit key for a request. Returning "" skips the
// check for that request.
type KeyFunc func(r *http.Request) string

// Middleware wraps a handler with a sliding-window rate limit. The verdict
// is surfaced through the standard X-RateLimit-* headers and a 429 JSON body.
func Middleware(l *Limiter, limit int, window time.Duration, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Check(key, limit, window)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))

			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			writeLimitedResponse(w, d)
		})
	}
}

// writeLimitedResponse writes a standardized 429 response.
func writeLimitedResponse(w http.ResponseWriter, d Decision) {
	retryAfter := time.Until(d.ResetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":            "Rate limit exceeded",
		"retry_after_secs": int(retryAfter.Seconds()),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Error encoding rate limit response")
	}
}
