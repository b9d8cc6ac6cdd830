package schema

import (
	"errors"
	"time"
)

// EngineConfig defines defaults and limits for the reconciliation engine.
type EngineConfig struct {
	// CursorSync propagates cursor positions across a tab family.
	CursorSync          bool
	GCInterval          time.Duration
	InactivityThreshold time.Duration
	VersionMaxAge       time.Duration
	ActivateAttempts    int
	ActivateRetryDelay  time.Duration
}

const (
	// DefaultGCInterval is how often the document manager scans for garbage.
	DefaultGCInterval = 5 * time.Minute
	// DefaultInactivityThreshold is how long a collectible document survives.
	DefaultInactivityThreshold = 10 * time.Minute
	// DefaultVersionMaxAge bounds how long inactive versions are kept.
	DefaultVersionMaxAge = 24 * time.Hour
	// DefaultActivateAttempts bounds reopen-by-locator retries.
	DefaultActivateAttempts = 3
	// DefaultActivateRetryDelay is the pause between activation attempts.
	DefaultActivateRetryDelay = 50 * time.Millisecond
)

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.GCInterval < 0 || cfg.InactivityThreshold < 0 || cfg.VersionMaxAge < 0 || cfg.ActivateRetryDelay < 0 {
		return EngineConfig{}, errors.New("engine durations must not be negative")
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.InactivityThreshold == 0 {
		cfg.InactivityThreshold = DefaultInactivityThreshold
	}
	if cfg.VersionMaxAge == 0 {
		cfg.VersionMaxAge = DefaultVersionMaxAge
	}
	if cfg.ActivateAttempts <= 0 {
		cfg.ActivateAttempts = DefaultActivateAttempts
	}
	if cfg.ActivateRetryDelay == 0 {
		cfg.ActivateRetryDelay = DefaultActivateRetryDelay
	}
	return cfg, nil
}
