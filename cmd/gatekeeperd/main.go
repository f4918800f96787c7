// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package main is the entry point for the gatekeeperd sidecar.
//
// Gatekeeperd exposes the validation and abuse-mitigation library over a
// small HTTP API so that frontends in any language can use it:
//
//   - POST /v1/uploads            validate an image upload, rate limited per client
//   - POST /v1/auth/failure      record a failed authentication attempt
//   - POST /v1/auth/success      clear an identifier after successful authentication
//   - GET  /v1/auth/status       query lockout state for an identifier
//   - GET  /v1/ipcheck           classify an IP literal for SSRF exposure
//   - GET  /healthz              liveness probe
//   - GET  /metrics              Prometheus metrics
//
// Configuration is loaded via koanf with layered sources (highest wins):
// environment variables (GATEKEEPER_ prefix), a YAML config file, built-in
// defaults. Setting storage.path enables BadgerDB persistence for rate-limit
// windows and lockout records; without it all state is in process memory.
//
// Shutdown on SIGINT/SIGTERM is graceful: the listener stops, in-flight
// requests get the configured drain timeout, then the supervision tree, the
// event emitter and the store are closed in that order.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/events"
	"github.com/tomtom215/gatekeeper/internal/lockout"
	"github.com/tomtom215/gatekeeper/internal/logging"
	"github.com/tomtom215/gatekeeper/internal/ratelimit"
	"github.com/tomtom215/gatekeeper/internal/sweeper"
	"github.com/tomtom215/gatekeeper/internal/threatscan"
	"github.com/tomtom215/gatekeeper/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("durable_storage", cfg.Storage.Path != "").
		Msg("Starting gatekeeperd")

	// Stores: BadgerDB when a storage path is configured, memory otherwise.
	var db *badger.DB
	var windowStore ratelimit.WindowStore
	var lockoutStore lockout.Store
	if cfg.Storage.Path != "" {
		db, err = badger.Open(badger.DefaultOptions(cfg.Storage.Path).WithLogger(nil))
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open storage")
		}
		windowStore = ratelimit.NewBadgerStore(db)
		lockoutStore = lockout.NewBadgerStore(db)
	} else {
		windowStore = ratelimit.NewMemoryStore()
		lockoutStore = lockout.NewMemoryStore()
	}

	emitter := events.NewEmitter(cfg.Events, events.NewLogSink())
	limiter := ratelimit.New(windowStore)
	tracker := lockout.NewTracker(cfg.Lockout, lockoutStore)
	scanner := threatscan.NewScanner(cfg.Scanner)
	pipeline := upload.NewPipeline(cfg.Upload, scanner, emitter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background maintenance runs supervised so a panicking sweep restarts.
	tree := sweeper.NewMaintenanceTree(
		logging.NewSlogLogger(),
		sweeper.DefaultTreeConfig(),
		limiter,
		tracker,
		cfg.RateLimit.SweepInterval,
		cfg.Lockout.CleanupInterval,
	)
	treeDone := tree.ServeBackground(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newRouter(cfg, pipeline, limiter, tracker, emitter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Error during HTTP shutdown")
	}

	stop()
	select {
	case <-treeDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		logging.Warn().Msg("Supervision tree did not stop in time")
	}

	emitter.Close()
	if db != nil {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
