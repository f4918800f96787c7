// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/tomtom215/gatekeeper/internal/ipcheck"
)

// urlSchemes are the scheme prefixes hunted inside metadata regions. Any of
// these can drive a server-side fetch if the metadata is later processed.
var urlSchemes = []string{
	"http://",
	"https://",
	"ftp://",
	"file://",
	"gopher://",
	"ldap://",
}

// urlTerminators end a URL token inside binary or text metadata.
const urlTerminators = " \t\r\n\x00\"'<>()[]{}"

// findSSRFTarget scans metadata regions for embedded URLs whose host is a
// loopback, private, link-local, reserved or cloud-metadata address, or a
// hostname that looks internal. It returns the first offending URL.
func findSSRFTarget(regions []metadataRegion) (string, bool) {
	for _, region := range regions {
		if target, found := scanRegionForSSRF(region.Data); found {
			return target, true
		}
	}
	return "", false
}

// scanRegionForSSRF hunts scheme prefixes in one region. Matching is
// case-insensitive over a lowercased copy; URL hosts are case-insensitive and
// the terminator set is pure ASCII, so extracting from the copy is safe.
func scanRegionForSSRF(data []byte) (string, bool) {
	lower := bytes.ToLower(data)
	for _, scheme := range urlSchemes {
		needle := []byte(scheme)
		from := 0
		for {
			idx := bytes.Index(lower[from:], needle)
			if idx < 0 {
				break
			}
			start := from + idx
			token := extractURLToken(lower, start)
			if urlTargetsInternal(token) {
				return token, true
			}
			from = start + len(needle)
		}
	}
	return "", false
}

// extractURLToken slices a URL starting at start, ending at the first
// terminator byte.
func extractURLToken(data []byte, start int) string {
	end := start
	for end < len(data) && strings.IndexByte(urlTerminators, data[end]) < 0 {
		end++
	}
	return string(data[start:end])
}

// urlTargetsInternal reports whether a URL points at an address that must
// never be fetched on a client's behalf. Unparseable URLs count as internal;
// an attacker controls the bytes, so ambiguity resolves against them.
func urlTargetsInternal(raw string) bool {
	cls, decided := ipcheck.ClassifyURLHost(raw)
	if decided {
		return !cls.AllowedForOutbound
	}

	// The host is a name, not an address literal.
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return ipcheck.HostLooksInternal(u.Hostname())
}

// metadataThreatNeedles are content indicators that make a metadata region
// suspicious regardless of any embedded URL. Scripted EXIF comments are a
// known stored-XSS vector when metadata is echoed back to browsers.
var metadataThreatNeedles = [][]byte{
	[]byte("<script"),
	[]byte("javascript:"),
	[]byte("vbscript:"),
	[]byte("data:text/html"),
	[]byte("<?php"),
	[]byte("onerror="),
	[]byte("onload="),
	[]byte("base64,"),
}

// suspiciousMetadataContent reports whether a region carries script content.
func suspiciousMetadataContent(data []byte) bool {
	lower := bytes.ToLower(data)
	for _, needle := range metadataThreatNeedles {
		if bytes.Contains(lower, needle) {
			return true
		}
	}
	return false
}
