// Package version reports the build identity of the sidetabs binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/sidetabs"

// buildVersion is set via -ldflags "-X pkt.systems/sidetabs/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running build.
type Info struct {
	Module   string
	Version  string
	Revision string
	Dirty    bool
}

// String formats the info as "module version".
func (i Info) String() string {
	out := i.Module + " " + i.Version
	if i.Dirty {
		out += "+dirty"
	}
	return out
}

// Read returns the best available build identity.
func Read() Info {
	info := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	bi, ok := readBuildInfo()
	if ok && bi != nil {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			info.Module = path
		}
		vcs := readVCS(bi)
		info.Revision = vcs.revision
		info.Dirty = vcs.modified
		if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
			info.Version = strings.TrimSuffix(v, "+dirty")
		} else if v := vcs.pseudo(); v != "" {
			info.Version = v
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		info.Version = strings.TrimSuffix(v, "+dirty")
	}
	return info
}

// Current returns the version string without a dirty suffix.
func Current() string {
	return Read().Version
}

type vcsSettings struct {
	revision string
	when     time.Time
	modified bool
}

func readVCS(bi *debug.BuildInfo) vcsSettings {
	var out vcsSettings
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.when = parsed
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudo builds a Go pseudo-version from the vcs stamp.
func (v vcsSettings) pseudo() string {
	if v.revision == "" || v.when.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.when.UTC().Format("20060102150405") + "-" + rev
}
