package schema

import (
	"testing"
	"time"
)

func TestNormalizeEngineConfigDefaults(t *testing.T) {
	cfg, err := NormalizeEngineConfig(EngineConfig{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.GCInterval != 5*time.Minute {
		t.Fatalf("expected 5m gc interval, got %s", cfg.GCInterval)
	}
	if cfg.InactivityThreshold != 10*time.Minute {
		t.Fatalf("expected 10m inactivity threshold, got %s", cfg.InactivityThreshold)
	}
	if cfg.ActivateAttempts != DefaultActivateAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultActivateAttempts, cfg.ActivateAttempts)
	}
	if cfg.CursorSync {
		t.Fatalf("cursor sync must default to off")
	}
}

func TestNormalizeEngineConfigKeepsValues(t *testing.T) {
	cfg, err := NormalizeEngineConfig(EngineConfig{GCInterval: time.Second, ActivateAttempts: 7, CursorSync: true})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.GCInterval != time.Second || cfg.ActivateAttempts != 7 || !cfg.CursorSync {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestNormalizeEngineConfigRejectsNegative(t *testing.T) {
	if _, err := NormalizeEngineConfig(EngineConfig{GCInterval: -time.Second}); err == nil {
		t.Fatalf("expected error for negative interval")
	}
}

func TestTabCloneIsDeep(t *testing.T) {
	tab := Tab{State: TabState{
		DiffStats:   &DiffStats{LinesAdded: 1},
		Permissions: Permissions{RestrictedActions: []string{"rename"}},
	}}
	cp := tab.Clone()
	cp.State.DiffStats.LinesAdded = 9
	cp.State.Permissions.RestrictedActions[0] = "delete"
	if tab.State.DiffStats.LinesAdded != 1 {
		t.Fatalf("clone shares diff stats")
	}
	if !tab.State.Permissions.Restricts("rename") {
		t.Fatalf("clone shares restricted actions")
	}
}

func TestDiffTypeValid(t *testing.T) {
	if len(AllDiffTypes) != 10 {
		t.Fatalf("expected 10 diff types, got %d", len(AllDiffTypes))
	}
	if DiffType("bogus").Valid() {
		t.Fatalf("unexpected valid tag")
	}
	if !DiffIncomingCurrent.Valid() {
		t.Fatalf("expected incoming-current to be valid")
	}
}
