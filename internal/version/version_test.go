package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func TestReadPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })
	stubBuildInfo(t, nil)

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if got := Read().Module; got != defaultModule {
		t.Fatalf("expected default module, got %q", got)
	}
}

func TestReadPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "pkt.systems/sidetabs", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	info := Read()
	if info.Version != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if !info.Dirty || info.String() != "pkt.systems/sidetabs v0.0.0-20250102030405-1234567890ab+dirty" {
		t.Fatalf("unexpected info %+v (%s)", info, info)
	}
}

func TestReadUnknownWithoutStamp(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if got := Current(); got != "v0.0.0-unknown" {
		t.Fatalf("expected unknown version, got %q", got)
	}
}
