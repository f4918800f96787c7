// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import "math"

// shannonEntropy computes the Shannon entropy of buf in bits per byte.
// Returns 0 for an empty buffer.
func shannonEntropy(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range buf {
		counts[b]++
	}

	total := float64(len(buf))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// countNullBytes counts zero bytes in buf.
func countNullBytes(buf []byte) int {
	n := 0
	for _, b := range buf {
		if b == 0 {
			n++
		}
	}
	return n
}
