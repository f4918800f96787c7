// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package risk

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestLevelOrdering(t *testing.T) {
	if !(Low < Medium && Medium < High && High < Critical) {
		t.Fatal("levels must be ordered low < medium < high < critical")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{Low, "low"},
		{Medium, "medium"},
		{High, "high"},
		{Critical, "critical"},
		{Level(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestMax(t *testing.T) {
	if got := Max(Low, High); got != High {
		t.Errorf("Max(Low, High) = %v, want High", got)
	}
	if got := Max(Critical, Medium); got != Critical {
		t.Errorf("Max(Critical, Medium) = %v, want Critical", got)
	}
}

func TestLevelMarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Severity Level `json:"severity"`
	}{Severity: High})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"severity":"high"}` {
		t.Errorf("marshaled = %s, want {\"severity\":\"high\"}", out)
	}
}
