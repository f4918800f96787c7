// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package main

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/events"
	"github.com/tomtom215/gatekeeper/internal/ipcheck"
	"github.com/tomtom215/gatekeeper/internal/lockout"
	"github.com/tomtom215/gatekeeper/internal/logging"
	"github.com/tomtom215/gatekeeper/internal/ratelimit"
	"github.com/tomtom215/gatekeeper/internal/risk"
	"github.com/tomtom215/gatekeeper/internal/upload"
)

// newRouter assembles the sidecar's HTTP API.
func newRouter(
	cfg *config.Config,
	pipeline *upload.Pipeline,
	limiter *ratelimit.Limiter,
	tracker *lockout.Tracker,
	emitter *events.Emitter,
) http.Handler {
	mux := http.NewServeMux()

	uploadLimited := ratelimit.Middleware(
		limiter,
		cfg.RateLimit.UploadLimit,
		cfg.RateLimit.UploadWindow,
		func(r *http.Request) string { return "upload:" + clientIP(r) },
	)
	mux.Handle("POST /v1/uploads", uploadLimited(handleUpload(cfg, pipeline, emitter)))

	mux.HandleFunc("POST /v1/auth/failure", handleAuthFailure(tracker, emitter))
	mux.HandleFunc("POST /v1/auth/success", handleAuthSuccess(tracker))
	mux.HandleFunc("GET /v1/auth/status", handleAuthStatus(tracker))
	mux.HandleFunc("GET /v1/ipcheck", handleIPCheck)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handleUpload validates a raw image body and returns the verdict. The
// sanitized bytes are returned to the caller for persistence; gatekeeperd
// never stores them itself.
func handleUpload(cfg *config.Config, pipeline *upload.Pipeline, emitter *events.Emitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, cfg.Upload.MaxUploadBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable request body"})
			return
		}

		verdict := pipeline.Validate(r.Context(), upload.File{
			Name:         r.Header.Get("X-Upload-Name"),
			DeclaredMIME: r.Header.Get("Content-Type"),
			Size:         int64(len(body)),
			Bytes:        body,
		}, upload.Context{
			CallerID:  r.Header.Get("X-Caller-ID"),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})

		if !verdict.Accepted {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"accepted":  false,
				"rejection": string(verdict.Rejection),
				"message":   verdict.Message,
			})
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Gatekeeper-Accepted", "true")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(verdict.SanitizedBytes); err != nil {
			logging.Error().Err(err).Msg("Error writing sanitized upload")
		}
	}
}

// authRequest is the body of the auth failure/success endpoints.
type authRequest struct {
	Identifier string `json:"identifier"`
}

func handleAuthFailure(tracker *lockout.Tracker, emitter *events.Emitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identifier required"})
			return
		}

		res, err := tracker.RecordFailureFrom(r.Context(), req.Identifier, clientIP(r))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lockout store unavailable"})
			return
		}

		if res.Locked {
			emitter.Submit(events.Event{
				Kind:      events.KindAccountLocked,
				CallerID:  req.Identifier,
				Severity:  lockSeverity(res),
				IP:        clientIP(r),
				UserAgent: r.UserAgent(),
				Details:   map[string]any{"lockout_secs": int(res.LockoutDuration.Seconds())},
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"locked":       res.Locked,
			"lockout_secs": int(res.LockoutDuration.Seconds()),
			"attempts":     res.Attempts,
			"delay_secs":   int(lockout.ProgressiveDelay(res.Attempts).Seconds()),
		})
	}
}

func handleAuthSuccess(tracker *lockout.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identifier required"})
			return
		}
		if err := tracker.RecordSuccess(r.Context(), req.Identifier); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lockout store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func handleAuthStatus(tracker *lockout.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := r.URL.Query().Get("identifier")
		if identifier == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identifier required"})
			return
		}
		status, err := tracker.Status(r.Context(), identifier)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lockout store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"locked":         status.Locked,
			"remaining_secs": int(status.Remaining.Seconds()),
			"attempts":       status.Attempts,
		})
	}
}

func handleIPCheck(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address required"})
		return
	}
	c := ipcheck.Classify(address)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   c.IsValid,
		"family":  c.Family.String(),
		"risk":    c.Risk.String(),
		"allowed": c.AllowedForOutbound,
		"reason":  c.Reason,
	})
}

// lockSeverity grades a lockout event by how long the lock runs.
func lockSeverity(res lockout.FailureResult) risk.Level {
	if res.LockoutDuration >= time.Hour {
		return risk.High
	}
	return risk.Medium
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Error encoding response")
	}
}
