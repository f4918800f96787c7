// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"testing"
)

func TestURLTargetsInternal(t *testing.T) {
	internal := []string{
		"http://127.0.0.1/steal",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/admin",
		"http://localhost:8080/",
		"http://metadata.internal/computeMetadata/v1/",
		"http://127.0.0.1.evil.example/steal",
		"http://169.254.169.254.evil.example/latest/meta-data/",
		"http://10.0.0.5.rebind.example/",
		"http://%zz", // unparseable resolves against the attacker
	}
	for _, raw := range internal {
		if !urlTargetsInternal(raw) {
			t.Errorf("urlTargetsInternal(%q) = false, want true", raw)
		}
	}

	external := []string{
		"http://images.example.com/a.png",
		"https://cdn.example.org/logo.jpg",
		"http://8.8.8.8.reverse.example/",
	}
	for _, raw := range external {
		if urlTargetsInternal(raw) {
			t.Errorf("urlTargetsInternal(%q) = true, want false", raw)
		}
	}
}

func TestScanRegionFlagsEmbeddedLiteralDomain(t *testing.T) {
	data := []byte("Comment: fetched via http://127.0.0.1.evil.example/steal end")
	target, found := scanRegionForSSRF(data)
	if !found {
		t.Fatal("embedded-literal domain URL not flagged")
	}
	if target != "http://127.0.0.1.evil.example/steal" {
		t.Errorf("wrong target extracted: %q", target)
	}
}
