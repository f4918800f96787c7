// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import (
	"github.com/tomtom215/gatekeeper/internal/risk"
)

// Evidence kinds. Kinds in criticalKinds force a Critical verdict regardless
// of confidence arithmetic.
const (
	KindMultipleSignatures  = "multiple_signatures"
	KindScriptTag           = "script_tag"
	KindJavaScriptProtocol  = "javascript_protocol"
	KindVBScriptProtocol    = "vbscript_protocol"
	KindDataHTML            = "data_html_uri"
	KindPEExecutable        = "pe_executable"
	KindELFExecutable       = "elf_executable"
	KindEmbeddedArchive     = "embedded_archive"
	KindPHPTag              = "php_tag"
	KindIframeTag           = "iframe_tag"
	KindImageScriptPolyglot = "image_script_polyglot"
	KindScriptElement       = "script_element"
	KindEventHandler        = "inline_event_handler"
	KindExternalResource    = "external_resource"
	KindNullPadding         = "null_byte_padding"
	KindHighEntropy         = "high_entropy"
)

// criticalKinds always map to Critical/Reject.
var criticalKinds = map[string]bool{
	KindScriptTag:           true,
	KindPEExecutable:        true,
	KindELFExecutable:       true,
	KindImageScriptPolyglot: true,
}

// Evidence is a single indicator found in the scanned window.
type Evidence struct {
	// Kind is one of the Kind* constants.
	Kind string `json:"kind"`
	// Confidence is the per-indicator weight in [0,1].
	Confidence float64 `json:"confidence"`
	// Offset is the byte offset of the indicator, or -1 when the indicator
	// is a whole-buffer property (entropy, null padding).
	Offset int `json:"offset"`
	// Description is a short human-readable summary.
	Description string `json:"description"`
}

// Recommendation is the action the caller should take.
type Recommendation int

const (
	// Allow passes the content through unchanged.
	Allow Recommendation = iota
	// Sanitize passes the content through a cleaning step.
	Sanitize
	// Quarantine holds the content for review.
	Quarantine
	// Reject refuses the content.
	Reject
)

// String returns the recommendation name.
func (r Recommendation) String() string {
	switch r {
	case Allow:
		return "allow"
	case Sanitize:
		return "sanitize"
	case Quarantine:
		return "quarantine"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Result is the scanner's verdict for one buffer.
type Result struct {
	// IsThreat is true exactly when Evidence is non-empty.
	IsThreat bool `json:"is_threat"`
	// Evidence lists indicators in discovery order.
	Evidence []Evidence `json:"evidence,omitempty"`
	// Risk is derived from the evidence set.
	Risk risk.Level `json:"risk"`
	// Recommendation is a deterministic mapping from Risk.
	Recommendation Recommendation `json:"recommendation"`
	// Degraded is true when the full analysis failed and the fallback
	// pattern-only scan produced this result.
	Degraded bool `json:"degraded,omitempty"`
}
