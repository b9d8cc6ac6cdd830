package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var validLevels = map[string]bool{"": true, "trace": true, "debug": true, "info": true, "error": true}

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("engine.cursor_sync", cfg.Engine.CursorSync)
	v.SetDefault("engine.gc_interval_seconds", cfg.Engine.GCIntervalSeconds)
	v.SetDefault("engine.inactivity_threshold_seconds", cfg.Engine.InactivityThresholdSeconds)
	v.SetDefault("engine.version_max_age_minutes", cfg.Engine.VersionMaxAgeMinutes)
	v.SetDefault("engine.activate_attempts", cfg.Engine.ActivateAttempts)
	v.SetDefault("engine.activate_retry_delay_ms", cfg.Engine.ActivateRetryDelayMS)
	v.SetDefault("git.enabled", cfg.Git.Enabled)
	v.SetDefault("git.repo_root", cfg.Git.RepoRoot)
	v.SetDefault("logging.level", cfg.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Git.RepoRoot = expandEnv(cfg.Git.RepoRoot)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	e := cfg.Engine
	if e.GCIntervalSeconds < 0 || e.InactivityThresholdSeconds < 0 || e.VersionMaxAgeMinutes < 0 || e.ActivateRetryDelayMS < 0 {
		return fmt.Errorf("engine durations must not be negative")
	}
	if e.ActivateAttempts < 0 {
		return fmt.Errorf("engine.activate_attempts must not be negative")
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("unsupported logging.level %q", cfg.Logging.Level)
	}
	return nil
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
