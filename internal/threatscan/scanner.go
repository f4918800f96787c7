// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package threatscan analyzes untrusted byte buffers for polyglot and
// malicious-content indicators.
//
// A scan runs four passes over a bounded window of the input, accumulating
// evidence without short-circuiting: magic-number signature detection, a
// declarative dangerous-pattern table, a permissive markup pass, and
// structural heuristics (null-byte interleaving, Shannon entropy). The
// evidence set deterministically maps to a risk level and a recommendation.
//
// Analysis is a pure function of the input bytes; scanning the same buffer
// twice yields identical results.
package threatscan

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/logging"
	"github.com/tomtom215/gatekeeper/internal/risk"
)

// Scanner analyzes byte buffers against a fixed indicator policy.
type Scanner struct {
	policy config.ScannerPolicy
	log    zerolog.Logger
}

// NewScanner creates a scanner with the given policy.
func NewScanner(policy config.ScannerPolicy) *Scanner {
	return &Scanner{
		policy: policy,
		log:    logging.With().Str("component", "threatscan").Logger(),
	}
}

// Analyze scans up to the policy's MaxAnalysisBytes of buf.
func (s *Scanner) Analyze(buf []byte) Result {
	return s.AnalyzeWithin(buf, s.policy.MaxAnalysisBytes)
}

// AnalyzeWithin scans at most maxBytes of buf. Content beyond the limit is
// never inspected; callers must separately enforce an upload size ceiling.
//
// A panic anywhere in the full analysis degrades to a pattern-only scan over
// a reduced window capped at Medium risk. A scan always produces a result.
func (s *Scanner) AnalyzeWithin(buf []byte, maxBytes int) (res Result) {
	if maxBytes <= 0 || maxBytes > s.policy.MaxAnalysisBytes {
		maxBytes = s.policy.MaxAnalysisBytes
	}
	window := buf
	if len(window) > maxBytes {
		window = window[:maxBytes]
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprint(r)).Msg("full scan failed, degrading to basic scan")
			scansTotal.WithLabelValues("degraded").Inc()
			res = s.degradedScan(window)
		}
	}()

	var evidence []Evidence

	// Pass 1: signature detection. Multiple unrelated signatures in the
	// prefix indicate a polyglot.
	sigs := detectSignatures(window)
	if len(sigs) > 1 && distinctClasses(sigs) > 1 {
		evidence = append(evidence, Evidence{
			Kind:        KindMultipleSignatures,
			Confidence:  0.8,
			Offset:      0,
			Description: fmt.Sprintf("%d unrelated format signatures present", len(sigs)),
		})
	}

	// Pass 2: dangerous-pattern table.
	evidence = append(evidence, scanPatterns(window)...)

	// Pass 3: permissive markup analysis.
	evidence = append(evidence, analyzeMarkup(window)...)

	// Pass 4: structural heuristics.
	evidence = append(evidence, s.structuralHeuristics(window)...)

	res = s.buildResult(evidence, false)
	scansTotal.WithLabelValues(res.Risk.String()).Inc()
	return res
}

// structuralHeuristics flags null-byte interleaving and high entropy.
func (s *Scanner) structuralHeuristics(window []byte) []Evidence {
	var out []Evidence

	nulls := countNullBytes(window)
	// Many formats are null-heavy; only sparse interleaving (typical of
	// polyglot padding) is suspicious.
	if nulls > s.policy.NullByteThreshold && nulls*10 < len(window) {
		out = append(out, Evidence{
			Kind:        KindNullPadding,
			Confidence:  0.5,
			Offset:      -1,
			Description: fmt.Sprintf("%d interleaved null bytes", nulls),
		})
	}

	entropyWindow := window
	if len(entropyWindow) > s.policy.EntropyWindowBytes {
		entropyWindow = entropyWindow[:s.policy.EntropyWindowBytes]
	}
	if e := shannonEntropy(entropyWindow); e > s.policy.EntropyThreshold {
		out = append(out, Evidence{
			Kind:        KindHighEntropy,
			Confidence:  0.5,
			Offset:      -1,
			Description: fmt.Sprintf("entropy %.2f bits/byte", e),
		})
	}

	return out
}

// degradedScan is the fallback after a panic in the full analysis: the
// pattern table alone over a reduced window, capped at Medium risk.
func (s *Scanner) degradedScan(window []byte) Result {
	if len(window) > s.policy.DegradedWindowBytes {
		window = window[:s.policy.DegradedWindowBytes]
	}

	res := s.buildResult(scanPatterns(window), true)
	if res.Risk > risk.Medium {
		res.Risk = risk.Medium
		res.Recommendation = recommendationFor(risk.Medium)
	}
	return res
}

// buildResult derives the risk level and recommendation from the evidence.
func (s *Scanner) buildResult(evidence []Evidence, degraded bool) Result {
	maxConfidence := 0.0
	critical := false
	for i := range evidence {
		if evidence[i].Confidence > maxConfidence {
			maxConfidence = evidence[i].Confidence
		}
		if criticalKinds[evidence[i].Kind] {
			critical = true
		}
	}

	var level risk.Level
	switch {
	case len(evidence) == 0:
		level = risk.Low
	case critical || maxConfidence >= s.policy.CriticalConfidence:
		level = risk.Critical
	case maxConfidence >= s.policy.HighConfidence || len(evidence) >= s.policy.HighEvidenceCount:
		level = risk.High
	case maxConfidence >= s.policy.MediumConfidence || len(evidence) >= s.policy.MediumEvidenceCount:
		level = risk.Medium
	default:
		level = risk.Low
	}

	return Result{
		IsThreat:       len(evidence) > 0,
		Evidence:       evidence,
		Risk:           level,
		Recommendation: recommendationFor(level),
		Degraded:       degraded,
	}
}

// recommendationFor is the fixed risk-to-action mapping.
func recommendationFor(level risk.Level) Recommendation {
	switch level {
	case risk.Critical:
		return Reject
	case risk.High:
		return Quarantine
	case risk.Medium:
		return Sanitize
	default:
		return Allow
	}
}
