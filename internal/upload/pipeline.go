// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package upload validates untrusted image uploads through an ordered,
// fail-fast pipeline: size ceiling, content threat scan, metadata SSRF scan,
// magic-number type check, dimension and decompression-bomb limits, metadata
// inspection, then a sanitizing re-encode. Only the re-encoded bytes are ever
// returned for persistence; original upload bytes never survive acceptance.
//
// Every validation, accepted or rejected, emits exactly one security event.
package upload

import (
	"bytes"
	"context"
	"image"
	"slices"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/events"
	"github.com/tomtom215/gatekeeper/internal/logging"
	"github.com/tomtom215/gatekeeper/internal/risk"
	"github.com/tomtom215/gatekeeper/internal/threatscan"
)

// Submitter accepts security events for asynchronous delivery.
type Submitter interface {
	Submit(events.Event) bool
}

// ArtifactRemover deletes a previously stored artifact. Implementations talk
// to whatever blob store holds accepted uploads.
type ArtifactRemover interface {
	Remove(ctx context.Context, ref string) error
}

// Pipeline validates uploads against a fixed policy.
type Pipeline struct {
	policy  config.UploadPolicy
	scanner *threatscan.Scanner
	emitter Submitter
	remover ArtifactRemover
	log     zerolog.Logger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithArtifactRemover wires the remover used by CleanupPrevious.
func WithArtifactRemover(r ArtifactRemover) Option {
	return func(p *Pipeline) { p.remover = r }
}

// NewPipeline creates a validation pipeline.
func NewPipeline(policy config.UploadPolicy, scanner *threatscan.Scanner, emitter Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy:  policy,
		scanner: scanner,
		emitter: emitter,
		log:     logging.With().Str("component", "upload").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate runs the full pipeline over one upload. Checks run in a fixed
// order and the first failure decides the verdict; later checks never run.
func (p *Pipeline) Validate(ctx context.Context, f File, meta Context) Verdict {
	if len(f.Bytes) == 0 {
		return p.reject(f, meta, RejectionInvalidInput, risk.Medium, nil)
	}

	size := int64(len(f.Bytes))
	if f.Size > size {
		size = f.Size
	}
	if size > p.policy.MaxUploadBytes {
		return p.reject(f, meta, RejectionSizeExceeded, risk.Medium, map[string]any{
			"size_bytes": size,
			"max_bytes":  p.policy.MaxUploadBytes,
		})
	}

	// Content threat scan. High risk means quarantine-grade evidence; for
	// uploads that is a rejection, not a holding pen.
	scan := p.scanner.Analyze(f.Bytes)
	if scan.Risk >= risk.High {
		return p.reject(f, meta, RejectionContentThreat, scan.Risk, map[string]any{
			"evidence_kinds": evidenceKinds(scan.Evidence),
			"degraded_scan":  scan.Degraded,
		})
	}

	// Metadata SSRF scan. The format only steers region extraction here; the
	// allow-list decision comes after, so a spoofed container still gets its
	// metadata hunted (or the fallback prefix when nothing parses).
	format, formatKnown := threatscan.DetectFormat(f.Bytes)
	regions, fieldCount := extractRegions(format, f.Bytes)
	scanRegions := regions
	if len(scanRegions) == 0 {
		prefix := f.Bytes
		if len(prefix) > p.policy.SSRFFallbackBytes {
			prefix = prefix[:p.policy.SSRFFallbackBytes]
		}
		scanRegions = []metadataRegion{{Source: "prefix_fallback", Data: prefix}}
	}
	if target, found := findSSRFTarget(scanRegions); found {
		return p.reject(f, meta, RejectionSSRFVector, risk.Critical, map[string]any{
			"url": logging.SanitizeValue("url", target),
		})
	}

	// Magic-number allow-list. The declared MIME type is recorded but never
	// trusted; the detected format governs.
	if !formatKnown || !slices.Contains(p.policy.AllowedFormats, format) {
		return p.reject(f, meta, RejectionSpoofedType, risk.Medium, map[string]any{
			"detected_format": format,
			"declared_mime":   f.DeclaredMIME,
		})
	}

	// Header-only decode for dimensions before committing to a full decode.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Bytes))
	if err != nil {
		p.log.Warn().Err(err).Str("format", format).Msg("image header decode failed")
		return p.reject(f, meta, RejectionInternalError, risk.Medium, map[string]any{
			"stage": "decode_config",
		})
	}
	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > p.policy.MaxDimensionPx || cfg.Height > p.policy.MaxDimensionPx {
		return p.reject(f, meta, RejectionDimensionExceeded, risk.Medium, map[string]any{
			"width":  cfg.Width,
			"height": cfg.Height,
			"max_px": p.policy.MaxDimensionPx,
		})
	}
	estimated := int64(cfg.Width) * int64(cfg.Height) * 3
	if estimated > p.policy.MaxPixelRatio*size {
		return p.reject(f, meta, RejectionDecompressionBomb, risk.High, map[string]any{
			"estimated_bytes": estimated,
			"size_bytes":      size,
			"max_ratio":       p.policy.MaxPixelRatio,
		})
	}

	// Metadata ceiling and content inspection.
	if fieldCount > p.policy.MaxMetadataFields {
		return p.reject(f, meta, RejectionSuspiciousMetadata, risk.Medium, map[string]any{
			"field_count": fieldCount,
			"max_fields":  p.policy.MaxMetadataFields,
		})
	}
	for _, region := range regions {
		if suspiciousMetadataContent(region.Data) {
			return p.reject(f, meta, RejectionSuspiciousMetadata, risk.High, map[string]any{
				"region": region.Source,
			})
		}
	}

	// Full decode, bounded. A decode that exceeds the deadline is treated
	// the same as a decode that fails outright.
	decodeCtx, cancel := context.WithTimeout(ctx, p.policy.DecodeTimeout)
	defer cancel()
	img, err := decodeImage(decodeCtx, f.Bytes)
	if err != nil {
		p.log.Warn().Err(err).Str("format", format).Msg("image decode failed")
		return p.reject(f, meta, RejectionInternalError, risk.Medium, map[string]any{
			"stage": "decode",
		})
	}

	sanitized, err := encodeSanitized(img, format, p.policy.JPEGQuality)
	if err != nil {
		p.log.Warn().Err(err).Str("format", format).Msg("sanitizing re-encode failed")
		return p.reject(f, meta, RejectionInternalError, risk.Medium, map[string]any{
			"stage": "encode",
		})
	}

	p.emit(events.Event{
		Kind:      events.KindUploadAccepted,
		CallerID:  meta.CallerID,
		Severity:  risk.Low,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details: map[string]any{
			"format":          format,
			"size_bytes":      size,
			"sanitized_bytes": len(sanitized),
			"width":           cfg.Width,
			"height":          cfg.Height,
		},
	})
	validationsTotal.WithLabelValues("accepted", "").Inc()

	return Verdict{Accepted: true, SanitizedBytes: sanitized}
}

// CleanupPrevious removes the caller's previously stored artifact after a
// replacement upload is accepted. Removal failures are logged and reported
// as events; they never fail the accept that triggered them.
func (p *Pipeline) CleanupPrevious(ctx context.Context, ref string, meta Context) {
	if p.remover == nil || ref == "" {
		return
	}
	if err := p.remover.Remove(ctx, ref); err != nil {
		p.log.Error().Err(err).Str("ref", ref).Msg("artifact cleanup failed")
		p.emit(events.Event{
			Kind:      events.KindArtifactCleanup,
			CallerID:  meta.CallerID,
			Severity:  risk.Low,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Details:   map[string]any{"ref": ref},
		})
	}
}

// reject emits the rejection event and builds the caller-facing verdict.
func (p *Pipeline) reject(f File, meta Context, kind RejectionKind, severity risk.Level, details map[string]any) Verdict {
	if details == nil {
		details = make(map[string]any, 2)
	}
	details["rejection"] = string(kind)
	details["file_name"] = logging.SanitizeValue("file_name", f.Name)

	p.emit(events.Event{
		Kind:      events.KindUploadRejected,
		CallerID:  meta.CallerID,
		Severity:  severity,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details:   details,
	})
	validationsTotal.WithLabelValues("rejected", string(kind)).Inc()

	p.log.Warn().
		Str("rejection", string(kind)).
		Str("severity", severity.String()).
		Msg("upload rejected")

	return Verdict{
		Accepted:  false,
		Rejection: kind,
		Message:   kind.Message(),
	}
}

// emit submits an event, tolerating a nil emitter for library embedding.
func (p *Pipeline) emit(ev events.Event) {
	if p.emitter == nil {
		return
	}
	p.emitter.Submit(ev)
}

// evidenceKinds flattens scan evidence to its kind names for event details.
func evidenceKinds(evidence []threatscan.Evidence) []string {
	kinds := make([]string, 0, len(evidence))
	for i := range evidence {
		kinds = append(kinds, evidence[i].Kind)
	}
	return kinds
}
