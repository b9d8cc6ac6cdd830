package appconfig

import (
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

func TestDefaultConfigMatchesEngineDefaults(t *testing.T) {
	got := DefaultConfig().Engine.ToEngineConfig()
	want, err := schema.NormalizeEngineConfig(schema.EngineConfig{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != want {
		t.Fatalf("default engine config = %+v, want %+v", got, want)
	}
}

func TestToEngineConfigUnits(t *testing.T) {
	cfg := EngineConfig{
		CursorSync:                 true,
		GCIntervalSeconds:          2,
		InactivityThresholdSeconds: 3,
		VersionMaxAgeMinutes:       4,
		ActivateAttempts:           5,
		ActivateRetryDelayMS:       6,
	}.ToEngineConfig()
	if !cfg.CursorSync || cfg.GCInterval != 2*time.Second || cfg.InactivityThreshold != 3*time.Second {
		t.Fatalf("unexpected conversion %+v", cfg)
	}
	if cfg.VersionMaxAge != 4*time.Minute || cfg.ActivateAttempts != 5 || cfg.ActivateRetryDelay != 6*time.Millisecond {
		t.Fatalf("unexpected conversion %+v", cfg)
	}
}

func TestLoggingOptions(t *testing.T) {
	base := pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}
	if got := (LoggingConfig{Level: "debug"}).Options(base); got.MinLevel != pslog.DebugLevel || got.Mode != pslog.ModeConsole {
		t.Fatalf("expected debug level kept in console mode, got %+v", got)
	}
	if got := (LoggingConfig{}).Options(base); got.MinLevel != pslog.InfoLevel {
		t.Fatalf("expected empty level to keep the base level")
	}
}
