// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

// File is one candidate upload.
type File struct {
	// Name is the client-supplied file name. Informational only; no
	// validation decision keys off it.
	Name string
	// DeclaredMIME is the client-declared content type. Never trusted;
	// recorded for the spoof-detection event detail.
	DeclaredMIME string
	// Size is the upload size in bytes as reported by the transport.
	Size int64
	// Bytes is the full upload content.
	Bytes []byte
}

// Context carries caller metadata for event emission.
type Context struct {
	CallerID  string
	IP        string
	UserAgent string
}

// RejectionKind classifies why an upload was refused.
type RejectionKind string

const (
	RejectionNone               RejectionKind = ""
	RejectionInvalidInput       RejectionKind = "invalid_input"
	RejectionSizeExceeded       RejectionKind = "size_exceeded"
	RejectionContentThreat      RejectionKind = "content_threat_detected"
	RejectionSSRFVector         RejectionKind = "ssrf_vector_detected"
	RejectionSpoofedType        RejectionKind = "unsupported_or_spoofed_type"
	RejectionDimensionExceeded  RejectionKind = "dimension_exceeded"
	RejectionDecompressionBomb  RejectionKind = "decompression_bomb_suspected"
	RejectionSuspiciousMetadata RejectionKind = "suspicious_metadata"
	RejectionInternalError      RejectionKind = "internal_error"
)

// messages maps each rejection kind to its caller-visible text.
var messages = map[RejectionKind]string{
	RejectionInvalidInput:       "The upload could not be read.",
	RejectionSizeExceeded:       "The file is too large.",
	RejectionContentThreat:      "The file contains disallowed content.",
	RejectionSSRFVector:         "The file metadata references a disallowed address.",
	RejectionSpoofedType:        "The file type is not supported.",
	RejectionDimensionExceeded:  "The image dimensions are too large.",
	RejectionDecompressionBomb:  "The image could not be accepted.",
	RejectionSuspiciousMetadata: "The image metadata could not be accepted.",
	RejectionInternalError:      "The image could not be processed.",
}

// Message returns the caller-visible message for a rejection kind.
func (k RejectionKind) Message() string {
	if msg, ok := messages[k]; ok {
		return msg
	}
	return "The upload was rejected."
}

// Verdict is the pipeline's decision for one upload.
type Verdict struct {
	// Accepted is true when every check passed.
	Accepted bool
	// Rejection names the failed check when not accepted.
	Rejection RejectionKind
	// Message is the caller-visible explanation when not accepted.
	Message string
	// SanitizedBytes is the re-encoded, metadata-free image on acceptance.
	// The original bytes must never be persisted.
	SanitizedBytes []byte
}
