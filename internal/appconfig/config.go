package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Engine        EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Git           GitConfig     `mapstructure:"git" yaml:"git"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EngineConfig controls reconciliation engine behavior.
type EngineConfig struct {
	CursorSync                 bool `mapstructure:"cursor_sync" yaml:"cursor_sync"`
	GCIntervalSeconds          int  `mapstructure:"gc_interval_seconds" yaml:"gc_interval_seconds"`
	InactivityThresholdSeconds int  `mapstructure:"inactivity_threshold_seconds" yaml:"inactivity_threshold_seconds"`
	VersionMaxAgeMinutes       int  `mapstructure:"version_max_age_minutes" yaml:"version_max_age_minutes"`
	ActivateAttempts           int  `mapstructure:"activate_attempts" yaml:"activate_attempts"`
	ActivateRetryDelayMS       int  `mapstructure:"activate_retry_delay_ms" yaml:"activate_retry_delay_ms"`
}

// GitConfig controls the git-status provider.
type GitConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	RepoRoot string `mapstructure:"repo_root" yaml:"repo_root"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Engine: EngineConfig{
			CursorSync:                 false,
			GCIntervalSeconds:          int(schema.DefaultGCInterval / time.Second),
			InactivityThresholdSeconds: int(schema.DefaultInactivityThreshold / time.Second),
			VersionMaxAgeMinutes:       int(schema.DefaultVersionMaxAge / time.Minute),
			ActivateAttempts:           schema.DefaultActivateAttempts,
			ActivateRetryDelayMS:       int(schema.DefaultActivateRetryDelay / time.Millisecond),
		},
		Git: GitConfig{
			Enabled:  true,
			RepoRoot: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ToEngineConfig converts the file representation into engine settings.
func (c EngineConfig) ToEngineConfig() schema.EngineConfig {
	return schema.EngineConfig{
		CursorSync:          c.CursorSync,
		GCInterval:          time.Duration(c.GCIntervalSeconds) * time.Second,
		InactivityThreshold: time.Duration(c.InactivityThresholdSeconds) * time.Second,
		VersionMaxAge:       time.Duration(c.VersionMaxAgeMinutes) * time.Minute,
		ActivateAttempts:    c.ActivateAttempts,
		ActivateRetryDelay:  time.Duration(c.ActivateRetryDelayMS) * time.Millisecond,
	}
}

// Options applies the configured level to base. Unknown or empty levels
// leave base untouched.
func (c LoggingConfig) Options(base pslog.Options) pslog.Options {
	switch c.Level {
	case "trace":
		base.MinLevel = pslog.TraceLevel
	case "debug":
		base.MinLevel = pslog.DebugLevel
	case "info":
		base.MinLevel = pslog.InfoLevel
	case "error":
		base.MinLevel = pslog.ErrorLevel
	}
	return base
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sidetabs", "config.yaml"), nil
}
