// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/tomtom215/gatekeeper/internal/lockout"
	"github.com/tomtom215/gatekeeper/internal/ratelimit"
)

// NewMaintenanceTree assembles the standard tree: a window-pruning sweep for
// the rate limiter and an expired-record sweep for the lockout tracker.
func NewMaintenanceTree(
	logger *slog.Logger,
	config TreeConfig,
	limiter *ratelimit.Limiter,
	tracker *lockout.Tracker,
	limiterInterval, lockoutInterval time.Duration,
) *Tree {
	tree := NewTree(logger, config)

	tree.AddMaintenanceService(NewService("ratelimit", limiterInterval, func(ctx context.Context) (int, error) {
		return limiter.Sweep(), nil
	}))
	tree.AddMaintenanceService(NewService("lockout", lockoutInterval, tracker.CleanupExpired))

	return tree
}
