package hostsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/diffstats"
	"pkt.systems/sidetabs/schema"
)

// Script is a scripted editor session.
type Script struct {
	Groups []int  `yaml:"groups"`
	Root   string `yaml:"root"`
	Steps  []Step `yaml:"steps"`
}

// Step is one scripted host action. Fields are interpreted per action.
type Step struct {
	Action   string `yaml:"action"`
	URI      string `yaml:"uri"`
	Label    string `yaml:"label"`
	Group    int    `yaml:"group"`
	Index    int    `yaml:"index"`
	Original string `yaml:"original"`
	Modified string `yaml:"modified"`
	ViewType string `yaml:"view_type"`
	Severity string `yaml:"severity"`
	Mode     string `yaml:"mode"`
	Line     int    `yaml:"line"`
	Column   int    `yaml:"column"`
	Added    int    `yaml:"added"`
	Removed  int    `yaml:"removed"`
	Patch    string `yaml:"patch"`
}

// Script actions.
const (
	ActionOpen       = "open"
	ActionDiff       = "diff"
	ActionWebview    = "webview"
	ActionPreview    = "preview"
	ActionClose      = "close"
	ActionActivate   = "activate"
	ActionPin        = "pin"
	ActionUnpin      = "unpin"
	ActionDirty      = "dirty"
	ActionGroupOpen  = "group-open"
	ActionGroupClose = "group-close"
	ActionDiagnostic = "diagnostic"
	ActionCursor     = "cursor"
	ActionViewMode   = "view-mode"
	ActionDiffStats  = "diff-stats"
	ActionSync       = "sync"
)

// Engine is the part of the reconciliation engine a script drives.
type Engine interface {
	Handler
	diffstats.Sink
	SyncAll(ctx context.Context)
	FindTabByURI(uri string, group schema.GroupID) (schema.Tab, error)
	PinTab(ctx context.Context, req schema.PinTabRequest) (schema.PinTabResponse, error)
	SyncCursor(ctx context.Context, req schema.SyncCursorRequest) (schema.SyncCursorResponse, error)
	SetViewMode(ctx context.Context, req schema.SetViewModeRequest) (schema.Tab, error)
}

// ParseScript decodes a YAML script.
func ParseScript(r io.Reader) (Script, error) {
	var script Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		if err == io.EOF {
			return Script{}, nil
		}
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	for i, step := range script.Steps {
		if step.Action == "" {
			return Script{}, fmt.Errorf("step %d: missing action", i+1)
		}
	}
	return script, nil
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return ParseScript(f)
}

// NewForScript returns a host with the script's groups, defaulting to a
// single group.
func NewForScript(script Script, logger pslog.Logger) *Host {
	cols := []schema.GroupID{1}
	if len(script.Groups) > 0 {
		cols = cols[:0]
		for _, g := range script.Groups {
			cols = append(cols, schema.GroupID(g))
		}
	}
	return New(logger, cols...)
}

// Run performs every step against host, applying the resulting
// notifications to engine after each step.
func Run(ctx context.Context, host *Host, engine Engine, script Script) error {
	log := pslog.Ctx(ctx)
	for i, step := range script.Steps {
		if err := runStep(ctx, host, engine, script.Root, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		applied := Drain(ctx, host, engine)
		log.Trace("hostsim step applied", "step", i+1, "action", step.Action, "events", applied)
	}
	return nil
}

func runStep(ctx context.Context, host *Host, engine Engine, root string, step Step) error {
	group := schema.GroupID(step.Group)
	if group == 0 {
		group = host.activeGroupID()
	}
	switch step.Action {
	case ActionOpen:
		if step.URI == "" {
			return schema.ErrNoLocator
		}
		label := step.Label
		if label == "" {
			label = classify.BaseName(step.URI)
		}
		host.OpenTab(schema.NativeTab{Label: label, Group: group, Input: schema.FileInput{URI: step.URI}})
	case ActionDiff:
		if step.Modified == "" && step.Original == "" {
			return schema.ErrNoLocator
		}
		host.OpenTab(schema.NativeTab{Label: step.Label, Group: group, Input: schema.DiffInput{Original: step.Original, Modified: step.Modified}})
	case ActionWebview:
		host.OpenTab(schema.NativeTab{Label: step.Label, Group: group, Input: schema.WebviewInput{ViewType: step.ViewType}})
	case ActionPreview:
		viewType := step.ViewType
		if viewType == "" {
			viewType = "markdown.preview"
		}
		host.OpenTab(schema.NativeTab{Label: "Preview " + step.Label, Group: group, Input: schema.WebviewInput{ViewType: viewType}})
	case ActionClose:
		native, err := findStepTab(host, group, step)
		if err != nil {
			return err
		}
		return host.CloseTab(native)
	case ActionActivate:
		return host.ActivateNativeTab(ctx, group, step.Index)
	case ActionPin, ActionUnpin:
		tab, err := engine.FindTabByURI(step.URI, group)
		if err != nil {
			return err
		}
		_, err = engine.PinTab(ctx, schema.PinTabRequest{TabID: tab.ID(), Pinned: step.Action == ActionPin})
		return err
	case ActionDirty:
		native, err := findStepTab(host, group, step)
		if err != nil {
			return err
		}
		return host.SetDirty(native, true)
	case ActionGroupOpen:
		host.OpenGroup(group)
	case ActionGroupClose:
		return host.CloseGroup(group)
	case ActionDiagnostic:
		host.SetDiagnostic(step.URI, schema.DiagnosticSeverity(strings.ToLower(step.Severity)))
	case ActionCursor:
		tab, err := engine.FindTabByURI(step.URI, group)
		if err != nil {
			return err
		}
		_, err = engine.SyncCursor(ctx, schema.SyncCursorRequest{TabID: tab.ID(), Line: step.Line, Column: step.Column})
		return err
	case ActionViewMode:
		tab, err := engine.FindTabByURI(step.URI, group)
		if err != nil {
			return err
		}
		_, err = engine.SetViewMode(ctx, schema.SetViewModeRequest{TabID: tab.ID(), Mode: schema.ViewMode(step.Mode)})
		return err
	case ActionDiffStats:
		if step.Patch != "" {
			_, err := diffstats.Apply(ctx, engine, root, strings.NewReader(step.Patch))
			return err
		}
		_, err := engine.ApplyDiffStats(ctx, step.URI, schema.DiffStats{LinesAdded: step.Added, LinesRemoved: step.Removed})
		return err
	case ActionSync:
		engine.SyncAll(ctx)
	default:
		return fmt.Errorf("unknown action %q: %w", step.Action, schema.ErrInvalidRequest)
	}
	return nil
}

func findStepTab(host *Host, group schema.GroupID, step Step) (schema.NativeTab, error) {
	uri := step.URI
	if uri == "" {
		uri = step.Modified
	}
	native, ok := host.FindTab(group, uri, step.Label)
	if !ok {
		return schema.NativeTab{}, fmt.Errorf("%s %q in group %d: %w", uri, step.Label, group, ErrNoSuchTab)
	}
	return native, nil
}

func (h *Host) activeGroupID() schema.GroupID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeGroup
}
