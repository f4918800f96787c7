// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import "bytes"

// sigClass groups signatures so that two formats of the same class (GIF87a
// and GIF89a, say) are not reported as a polyglot.
type sigClass int

const (
	classImage sigClass = iota
	classExecutable
	classArchive
	classMarkup
)

// fileSignature is one magic-number entry. Prefix is matched at offset At;
// Also, when non-nil, must additionally match at AlsoAt (WebP needs both the
// RIFF fourcc and the WEBP form type).
type fileSignature struct {
	Format string
	Class  sigClass
	Prefix []byte
	At     int
	Also   []byte
	AlsoAt int
}

// signatureTable is the fixed magic-number table. Order is significant only
// for DetectFormat, which returns the first match.
var signatureTable = []fileSignature{
	{Format: "jpeg", Class: classImage, Prefix: []byte{0xFF, 0xD8, 0xFF}},
	{Format: "png", Class: classImage, Prefix: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{Format: "gif", Class: classImage, Prefix: []byte("GIF87a")},
	{Format: "gif", Class: classImage, Prefix: []byte("GIF89a")},
	{Format: "webp", Class: classImage, Prefix: []byte("RIFF"), Also: []byte("WEBP"), AlsoAt: 8},
	{Format: "pe", Class: classExecutable, Prefix: []byte{'M', 'Z'}},
	{Format: "elf", Class: classExecutable, Prefix: []byte{0x7F, 'E', 'L', 'F'}},
	{Format: "zip", Class: classArchive, Prefix: []byte{'P', 'K', 0x03, 0x04}},
	{Format: "rar", Class: classArchive, Prefix: []byte("Rar!")},
	{Format: "html", Class: classMarkup, Prefix: []byte("<!DOCTYPE html")},
	{Format: "html", Class: classMarkup, Prefix: []byte("<html")},
	{Format: "xml", Class: classMarkup, Prefix: []byte("<?xml")},
}

// matches reports whether the signature is present in buf.
func (s *fileSignature) matches(buf []byte) bool {
	if len(buf) < s.At+len(s.Prefix) {
		return false
	}
	if !bytes.Equal(buf[s.At:s.At+len(s.Prefix)], s.Prefix) {
		return false
	}
	if s.Also != nil {
		if len(buf) < s.AlsoAt+len(s.Also) {
			return false
		}
		return bytes.Equal(buf[s.AlsoAt:s.AlsoAt+len(s.Also)], s.Also)
	}
	return true
}

// DetectFormat returns the format name of the first matching signature.
// The second return is false when no known signature matches.
func DetectFormat(buf []byte) (string, bool) {
	for i := range signatureTable {
		if signatureTable[i].matches(buf) {
			return signatureTable[i].Format, true
		}
	}
	return "", false
}

// detectSignatures returns every matching signature, deduplicated by format.
func detectSignatures(buf []byte) []fileSignature {
	var found []fileSignature
	seen := map[string]bool{}
	for i := range signatureTable {
		sig := signatureTable[i]
		if seen[sig.Format] || !sig.matches(buf) {
			continue
		}
		seen[sig.Format] = true
		found = append(found, sig)
	}
	return found
}

// distinctClasses counts how many signature classes are present.
func distinctClasses(sigs []fileSignature) int {
	classes := map[sigClass]bool{}
	for i := range sigs {
		classes[sigs[i].Class] = true
	}
	return len(classes)
}
