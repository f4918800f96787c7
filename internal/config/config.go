// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package config provides layered configuration for Gatekeeper using koanf.
//
// Precedence, lowest to highest: struct defaults, YAML config file,
// GATEKEEPER_-prefixed environment variables. All tunable policy constants
// (scanner confidence thresholds, upload ceilings, rate-limit and lockout
// defaults) live here so that they are configuration, not code.
package config

import (
	"time"
)

// Config is the root configuration for the Gatekeeper library.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Scanner   ScannerPolicy   `koanf:"scanner"`
	Upload    UploadPolicy    `koanf:"upload"`
	RateLimit RateLimitPolicy `koanf:"ratelimit"`
	Lockout   LockoutPolicy   `koanf:"lockout"`
	Events    EventsPolicy    `koanf:"events"`
}

// ServerConfig configures the standalone gatekeeperd HTTP server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// StorageConfig selects the backing store for mutable state. An empty path
// keeps everything in process memory; a path enables BadgerDB persistence.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig configures the zerolog-based logging package.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ScannerPolicy holds the content threat scanner's tunables. Confidence
// weights for individual patterns live in the scanner's pattern table; the
// thresholds that map evidence to a risk level live here.
type ScannerPolicy struct {
	// MaxAnalysisBytes bounds how much of a buffer is inspected.
	MaxAnalysisBytes int `koanf:"max_analysis_bytes" validate:"min=1024"`

	// EntropyWindowBytes is the prefix length used for Shannon entropy.
	EntropyWindowBytes int `koanf:"entropy_window_bytes" validate:"min=256"`

	// EntropyThreshold is the bits-per-byte level considered high entropy.
	EntropyThreshold float64 `koanf:"entropy_threshold" validate:"gt=0,lte=8"`

	// NullByteThreshold is the absolute null count that flags interleaving.
	NullByteThreshold int `koanf:"null_byte_threshold" validate:"min=1"`

	// CriticalConfidence and friends are the risk-mapping thresholds.
	CriticalConfidence float64 `koanf:"critical_confidence" validate:"gt=0,lte=1"`
	HighConfidence     float64 `koanf:"high_confidence" validate:"gt=0,lte=1"`
	MediumConfidence   float64 `koanf:"medium_confidence" validate:"gt=0,lte=1"`

	// HighEvidenceCount / MediumEvidenceCount are the evidence-count floors
	// for the High and Medium risk levels.
	HighEvidenceCount   int `koanf:"high_evidence_count" validate:"min=1"`
	MediumEvidenceCount int `koanf:"medium_evidence_count" validate:"min=1"`

	// DegradedWindowBytes is the window used by the fallback scan after an
	// internal panic in the full analysis.
	DegradedWindowBytes int `koanf:"degraded_window_bytes" validate:"min=256"`
}

// UploadPolicy holds the upload validation pipeline's tunables.
type UploadPolicy struct {
	// MaxUploadBytes is the upload size ceiling.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"min=1024"`

	// MaxDimensionPx caps image width and height.
	MaxDimensionPx int `koanf:"max_dimension_px" validate:"min=16"`

	// MaxPixelRatio is the decompression-bomb ratio: estimated uncompressed
	// bytes (width*height*3) divided by on-disk size.
	MaxPixelRatio int64 `koanf:"max_pixel_ratio" validate:"min=1"`

	// MaxMetadataFields caps the number of metadata fields before the
	// upload is considered suspicious.
	MaxMetadataFields int `koanf:"max_metadata_fields" validate:"min=1"`

	// JPEGQuality is the re-encode quality for sanitized JPEG output.
	JPEGQuality int `koanf:"jpeg_quality" validate:"min=1,max=100"`

	// DecodeTimeout bounds the image decode step.
	DecodeTimeout time.Duration `koanf:"decode_timeout" validate:"min=100ms"`

	// AllowedFormats is the magic-number allow-list (jpeg, png, webp, gif).
	AllowedFormats []string `koanf:"allowed_formats" validate:"min=1,dive,oneof=jpeg png webp gif"`

	// SSRFFallbackBytes is the scanned prefix when no metadata region is found.
	SSRFFallbackBytes int `koanf:"ssrf_fallback_bytes" validate:"min=256"`
}

// RateLimitPolicy holds sliding-window limiter tunables. Limits are supplied
// per check by callers; these are the standalone server's defaults.
type RateLimitPolicy struct {
	// UploadLimit and UploadWindow bound the server's upload endpoint per
	// client address.
	UploadLimit  int           `koanf:"upload_limit" validate:"min=0"`
	UploadWindow time.Duration `koanf:"upload_window" validate:"min=1s"`

	// SweepInterval is how often stale windows are purged.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"min=1s"`
}

// LockoutPolicy holds account-lockout tunables.
type LockoutPolicy struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`

	// AttemptWindow is how long a failed attempt counts against the total.
	AttemptWindow time.Duration `koanf:"attempt_window" validate:"min=1s"`

	// BaseLockout is the first lockout duration.
	BaseLockout time.Duration `koanf:"base_lockout" validate:"min=1s"`

	// Multiplier scales the lockout duration on each repeated lockout.
	Multiplier int `koanf:"multiplier" validate:"min=1"`

	// MaxLockout caps the lockout duration.
	MaxLockout time.Duration `koanf:"max_lockout" validate:"min=1s"`

	// CleanupInterval is how often expired records are purged.
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"min=1s"`

	// TrackByIP also tracks failed attempts under a composed ip: subject.
	TrackByIP bool `koanf:"track_by_ip"`
}

// EventsPolicy holds the security-event emitter's tunables.
type EventsPolicy struct {
	// QueueSize bounds the buffer of events held while delivery is open.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// FailureThreshold is the consecutive delivery failures that open the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold" validate:"min=1"`

	// OpenTimeout is how long the breaker stays open before half-open probes.
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"min=1s"`

	// HalfOpenMaxRequests is the number of probe deliveries allowed half-open.
	HalfOpenMaxRequests uint32 `koanf:"half_open_max_requests" validate:"min=1"`

	// DrainPerSecond throttles the redelivery of buffered events.
	DrainPerSecond int `koanf:"drain_per_second" validate:"min=1"`
}

// Default returns a Config with the reference policy values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8421,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Scanner: ScannerPolicy{
			MaxAnalysisBytes:    1 << 20, // 1 MiB
			EntropyWindowBytes:  4096,
			EntropyThreshold:    7.5,
			NullByteThreshold:   16,
			CriticalConfidence:  0.9,
			HighConfidence:      0.8,
			MediumConfidence:    0.6,
			HighEvidenceCount:   3,
			MediumEvidenceCount: 2,
			DegradedWindowBytes: 4096,
		},
		Upload: UploadPolicy{
			MaxUploadBytes:    5 << 20, // 5 MiB
			MaxDimensionPx:    4096,
			MaxPixelRatio:     100,
			MaxMetadataFields: 50,
			JPEGQuality:       85,
			DecodeTimeout:     10 * time.Second,
			AllowedFormats:    []string{"jpeg", "png", "webp", "gif"},
			SSRFFallbackBytes: 4096,
		},
		RateLimit: RateLimitPolicy{
			UploadLimit:   30,
			UploadWindow:  time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Lockout: LockoutPolicy{
			MaxAttempts:     5,
			AttemptWindow:   15 * time.Minute,
			BaseLockout:     15 * time.Minute,
			Multiplier:      2,
			MaxLockout:      24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
			TrackByIP:       false,
		},
		Events: EventsPolicy{
			QueueSize:           1024,
			FailureThreshold:    5,
			OpenTimeout:         30 * time.Second,
			HalfOpenMaxRequests: 3,
			DrainPerSecond:      50,
		},
	}
}
