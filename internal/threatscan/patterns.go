// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import "bytes"

// threatPattern is one entry in the dangerous-pattern table. Patterns are
// fixed byte needles with hand-tuned confidence weights; the table is
// declarative so new signatures can be added without touching control flow.
type threatPattern struct {
	Needle      []byte
	Kind        string
	Confidence  float64
	Description string
	// CaseFold matches the needle case-insensitively (textual patterns).
	CaseFold bool
	// SkipAtZero ignores a match at offset 0; used for magic numbers that
	// are only suspicious when embedded mid-buffer.
	SkipAtZero bool
}

// patternTable is the fixed ordered list of dangerous patterns. Order is the
// discovery order of the resulting evidence.
var patternTable = []threatPattern{
	{Needle: []byte("<script"), Kind: KindScriptTag, Confidence: 0.95, Description: "script tag", CaseFold: true},
	{Needle: []byte("javascript:"), Kind: KindJavaScriptProtocol, Confidence: 0.85, Description: "javascript protocol handler", CaseFold: true},
	{Needle: []byte("vbscript:"), Kind: KindVBScriptProtocol, Confidence: 0.85, Description: "vbscript protocol handler", CaseFold: true},
	{Needle: []byte("data:text/html"), Kind: KindDataHTML, Confidence: 0.8, Description: "data URI with HTML payload", CaseFold: true},
	{Needle: []byte("<iframe"), Kind: KindIframeTag, Confidence: 0.7, Description: "iframe tag", CaseFold: true},
	{Needle: []byte("<?php"), Kind: KindPHPTag, Confidence: 0.9, Description: "PHP processing instruction", CaseFold: true},
	{Needle: []byte{0x4D, 0x5A, 0x90, 0x00}, Kind: KindPEExecutable, Confidence: 0.9, Description: "embedded PE executable header"},
	{Needle: []byte{0x7F, 'E', 'L', 'F'}, Kind: KindELFExecutable, Confidence: 0.9, Description: "embedded ELF executable header", SkipAtZero: true},
	{Needle: []byte{'P', 'K', 0x03, 0x04}, Kind: KindEmbeddedArchive, Confidence: 0.6, Description: "embedded ZIP archive header", SkipAtZero: true},
	{Needle: []byte("Rar!\x1a\x07"), Kind: KindEmbeddedArchive, Confidence: 0.6, Description: "embedded RAR archive header", SkipAtZero: true},
}

// scanPatterns applies the pattern table to the window, producing one
// evidence item per matching pattern.
func scanPatterns(window []byte) []Evidence {
	var lowered []byte // lazily built lowercase copy for case-folded needles

	var out []Evidence
	for i := range patternTable {
		p := &patternTable[i]

		haystack := window
		if p.CaseFold {
			if lowered == nil {
				lowered = bytes.ToLower(window)
			}
			haystack = lowered
		}

		idx := bytes.Index(haystack, p.Needle)
		if idx < 0 {
			continue
		}
		if idx == 0 && p.SkipAtZero {
			// The buffer legitimately is this format; look deeper.
			next := bytes.Index(haystack[len(p.Needle):], p.Needle)
			if next < 0 {
				continue
			}
			idx = next + len(p.Needle)
		}

		out = append(out, Evidence{
			Kind:        p.Kind,
			Confidence:  p.Confidence,
			Offset:      idx,
			Description: p.Description,
		})
	}

	// Known polyglot marker combination: an image signature at the start of
	// the buffer with a script tag later in the window.
	if sig, ok := DetectFormat(window); ok && isImageFormat(sig) {
		if idx := indexFold(window, []byte("<script")); idx > 0 {
			out = append(out, Evidence{
				Kind:        KindImageScriptPolyglot,
				Confidence:  0.95,
				Offset:      idx,
				Description: sig + " signature followed by script tag",
			})
		}
	}

	return out
}

// isImageFormat reports whether a detected format is an image format.
func isImageFormat(format string) bool {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

// indexFold is a case-insensitive bytes.Index for ASCII needles.
func indexFold(haystack, needle []byte) int {
	return bytes.Index(bytes.ToLower(haystack), bytes.ToLower(needle))
}
