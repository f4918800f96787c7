// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package lockout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareBlocksLockedSubject(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	tr := newTestTracker(clock)
	for i := 0; i < 3; i++ {
		tr.RecordFailure(ctx, "user@example.com")
	}

	handler := Middleware(tr, func(r *http.Request) string {
		return r.Header.Get("X-Subject")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Subject", "user@example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Unlocked subjects pass through.
	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Subject", "other@example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("unlocked subject: status %d, want 204", rec.Code)
	}
}

func TestMiddlewareEmptySubjectSkips(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	handler := Middleware(tr, func(r *http.Request) string {
		return ""
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status %d, want 204 (empty subject skips the check)", rec.Code)
	}
}
