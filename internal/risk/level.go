// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package risk defines the shared severity scale used by classifiers,
// scanners and the security event emitter.
package risk

// Level is an ordered severity scale. Higher values are more severe.
type Level int

const (
	// Low indicates no meaningful risk was identified.
	Low Level = iota
	// Medium indicates suspicious but not conclusively hostile input.
	Medium
	// High indicates input that should not be trusted.
	High
	// Critical indicates conclusively hostile input.
	Critical
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// MarshalJSON encodes the level as its string name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}
