// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator instance. The instance caches
// struct metadata, so it must be a singleton.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a Config against its validate tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Threshold ordering cannot be expressed with field tags.
	s := cfg.Scanner
	if !(s.MediumConfidence < s.HighConfidence && s.HighConfidence < s.CriticalConfidence) {
		return fmt.Errorf("invalid configuration: scanner confidence thresholds must be ordered medium < high < critical")
	}
	if s.MediumEvidenceCount >= s.HighEvidenceCount {
		return fmt.Errorf("invalid configuration: scanner evidence counts must be ordered medium < high")
	}
	if cfg.Lockout.BaseLockout > cfg.Lockout.MaxLockout {
		return fmt.Errorf("invalid configuration: lockout base duration exceeds the cap")
	}

	return nil
}
