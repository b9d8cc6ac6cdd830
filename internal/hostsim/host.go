// Package hostsim is an in-memory host editor. It keeps native tabs and
// groups, answers the engine's host queries and queues the notifications a
// real editor would send.
package hostsim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/schema"
)

// ErrNoSuchTab is returned when an operation names a native tab the host
// does not have.
var ErrNoSuchTab = errors.New("hostsim: no such tab")

// Selection records one editor selection change.
type Selection struct {
	Editor        schema.VisibleEditor
	Line          int
	Column        int
	PreserveFocus bool
}

// Host is a thread-safe simulated editor.
type Host struct {
	mu          sync.Mutex
	groups      map[schema.GroupID][]schema.NativeTab
	activeGroup schema.GroupID
	diags       map[string]schema.DiagnosticSeverity
	selections  []Selection
	failOpen    int
	failActive  int
	queue       []schema.HostEvent
	notify      chan struct{}
	log         pslog.Logger
}

// New returns a host with the given group columns. The first column is the
// active group.
func New(logger pslog.Logger, columns ...schema.GroupID) *Host {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	h := &Host{
		groups: make(map[schema.GroupID][]schema.NativeTab),
		diags:  make(map[string]schema.DiagnosticSeverity),
		notify: make(chan struct{}, 1),
		log:    logger,
	}
	for i, col := range columns {
		h.groups[col] = nil
		if i == 0 {
			h.activeGroup = col
		}
	}
	return h
}

func sameTab(a, b schema.NativeTab) bool {
	return a.Group == b.Group && a.Label == b.Label && a.Input == b.Input
}

func (h *Host) emitLocked(ev schema.HostEvent) {
	h.queue = append(h.queue, ev)
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Host) columnsLocked() []schema.GroupID {
	cols := make([]schema.GroupID, 0, len(h.groups))
	for col := range h.groups {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return cols
}

// NativeTabs returns every native tab ordered by group and position.
func (h *Host) NativeTabs(context.Context) []schema.NativeTab {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []schema.NativeTab
	for _, col := range h.columnsLocked() {
		out = append(out, h.groups[col]...)
	}
	return out
}

// NativeGroups returns every group ordered by column.
func (h *Host) NativeGroups(context.Context) []schema.NativeGroup {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []schema.NativeGroup
	for _, col := range h.columnsLocked() {
		out = append(out, schema.NativeGroup{Column: col, IsActive: col == h.activeGroup})
	}
	return out
}

// VisibleEditors returns the active resource-backed tab of every group.
func (h *Host) VisibleEditors(context.Context) []schema.VisibleEditor {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []schema.VisibleEditor
	for _, col := range h.columnsLocked() {
		for _, tab := range h.groups[col] {
			if tab.IsActive && tab.URI() != "" {
				out = append(out, schema.VisibleEditor{URI: tab.URI(), Group: col})
			}
		}
	}
	return out
}

// SetEditorSelection records the selection change.
func (h *Host) SetEditorSelection(_ context.Context, editor schema.VisibleEditor, line, column int, preserveFocus bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selections = append(h.selections, Selection{Editor: editor, Line: line, Column: column, PreserveFocus: preserveFocus})
	return nil
}

// Selections returns every recorded selection change.
func (h *Host) Selections() []Selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.selections)
}

// DiagnosticSeverity reports the severity set for uri.
func (h *Host) DiagnosticSeverity(uri string) schema.DiagnosticSeverity {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sev, ok := h.diags[classify.NormalizeLocator(uri)]; ok {
		return sev
	}
	return schema.DiagnosticNone
}

// SetDiagnostic changes the severity of uri and notifies.
func (h *Host) SetDiagnostic(uri string, sev schema.DiagnosticSeverity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diags[classify.NormalizeLocator(uri)] = sev
	h.emitLocked(schema.HostEvent{Type: schema.HostEventDiagnostics, Diagnostics: schema.DiagnosticsEvent{URIs: []string{uri}}})
}

// FailNextOpens makes the next n OpenDocument calls fail.
func (h *Host) FailNextOpens(n int) {
	h.mu.Lock()
	h.failOpen = n
	h.mu.Unlock()
}

// FailNextActivations makes the next n ActivateNativeTab calls fail.
func (h *Host) FailNextActivations(n int) {
	h.mu.Lock()
	h.failActive = n
	h.mu.Unlock()
}

// ensureGroupLocked creates a group on first use.
func (h *Host) ensureGroupLocked(col schema.GroupID) {
	if _, ok := h.groups[col]; ok {
		return
	}
	h.groups[col] = nil
	if h.activeGroup == 0 {
		h.activeGroup = col
	}
	h.emitLocked(schema.HostEvent{Type: schema.HostEventGroups, Groups: schema.GroupChangeEvent{
		Opened: []schema.NativeGroup{{Column: col, IsActive: col == h.activeGroup}},
	}})
}

// insertLocked places tab at index (-1 appends) and returns it as stored.
func (h *Host) insertLocked(tab schema.NativeTab, index int, focus bool) schema.NativeTab {
	h.ensureGroupLocked(tab.Group)
	tabs := h.groups[tab.Group]
	if index < 0 || index > len(tabs) {
		index = len(tabs)
	}
	var changed []schema.NativeTab
	if focus {
		for i := range tabs {
			if tabs[i].IsActive {
				tabs[i].IsActive = false
				changed = append(changed, tabs[i])
			}
		}
		tab.IsActive = true
		h.activeGroup = tab.Group
	}
	h.groups[tab.Group] = slices.Insert(tabs, index, tab)
	h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Opened: []schema.NativeTab{tab}, Changed: changed}})
	if focus && tab.URI() != "" {
		h.emitLocked(schema.HostEvent{Type: schema.HostEventActiveEditor, ActiveEditor: schema.ActiveEditorEvent{URI: tab.URI(), Group: tab.Group}})
	}
	return tab
}

// OpenTab adds a native tab as the user would, focusing it.
func (h *Host) OpenTab(tab schema.NativeTab) schema.NativeTab {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab.Group == 0 {
		tab.Group = h.activeGroup
	}
	h.log.Trace("hostsim tab opened", "label", tab.Label, "group", int(tab.Group))
	return h.insertLocked(tab, -1, true)
}

// OpenDocument opens uri in a group. An existing tab for uri is focused
// instead unless focus is preserved.
func (h *Host) OpenDocument(_ context.Context, uri string, opts schema.OpenOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failOpen > 0 {
		h.failOpen--
		return fmt.Errorf("hostsim: open %s failed", uri)
	}
	group := opts.Group
	if group == 0 {
		group = h.activeGroup
	}
	locator := classify.NormalizeLocator(uri)
	for i, tab := range h.groups[group] {
		in, ok := tab.Input.(schema.FileInput)
		if !ok || classify.NormalizeLocator(in.URI) != locator {
			continue
		}
		if !opts.PreserveFocus {
			h.activateLocked(group, i)
		}
		return nil
	}
	tab := schema.NativeTab{
		Label:     classify.BaseName(uri),
		Group:     group,
		IsPreview: opts.Preview,
		Input:     schema.FileInput{URI: uri},
	}
	h.insertLocked(tab, opts.Index, !opts.PreserveFocus)
	return nil
}

// CloseNativeTabs closes the given tabs. Unknown tabs are ignored.
func (h *Host) CloseNativeTabs(_ context.Context, tabs []schema.NativeTab) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(tabs)
	return nil
}

// CloseTab closes one tab as the user would.
func (h *Host) CloseTab(tab schema.NativeTab) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.closeLocked([]schema.NativeTab{tab})) == 0 {
		return ErrNoSuchTab
	}
	return nil
}

func (h *Host) closeLocked(tabs []schema.NativeTab) []schema.NativeTab {
	var closed, changed []schema.NativeTab
	for _, want := range tabs {
		members := h.groups[want.Group]
		idx := slices.IndexFunc(members, func(n schema.NativeTab) bool { return sameTab(n, want) })
		if idx < 0 {
			continue
		}
		gone := members[idx]
		members = slices.Delete(members, idx, idx+1)
		if gone.IsActive && len(members) > 0 {
			next := min(idx, len(members)-1)
			members[next].IsActive = true
			changed = append(changed, members[next])
		}
		h.groups[want.Group] = members
		closed = append(closed, gone)
	}
	if len(closed) > 0 {
		h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Closed: closed, Changed: changed}})
	}
	return closed
}

// ActivateNativeTab focuses the tab at index in group.
func (h *Host) ActivateNativeTab(_ context.Context, group schema.GroupID, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failActive > 0 {
		h.failActive--
		return fmt.Errorf("hostsim: activate %d/%d failed", group, index)
	}
	if index < 0 || index >= len(h.groups[group]) {
		return fmt.Errorf("hostsim: activate %d/%d: %w", group, index, ErrNoSuchTab)
	}
	h.activateLocked(group, index)
	return nil
}

func (h *Host) activateLocked(group schema.GroupID, index int) {
	tabs := h.groups[group]
	var changed []schema.NativeTab
	for i := range tabs {
		want := i == index
		if tabs[i].IsActive != want {
			tabs[i].IsActive = want
			changed = append(changed, tabs[i])
		}
	}
	h.activeGroup = group
	if len(changed) > 0 {
		h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Changed: changed}})
	}
	h.emitLocked(schema.HostEvent{Type: schema.HostEventActiveEditor, ActiveEditor: schema.ActiveEditorEvent{URI: tabs[index].URI(), Group: group}})
}

// SetNativePinned pins or unpins a tab and moves it to the pin boundary.
func (h *Host) SetNativePinned(_ context.Context, tab schema.NativeTab, pinned bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[tab.Group]
	idx := slices.IndexFunc(members, func(n schema.NativeTab) bool { return sameTab(n, tab) })
	if idx < 0 {
		return ErrNoSuchTab
	}
	moved := members[idx]
	moved.IsPinned = pinned
	members = slices.Delete(members, idx, idx+1)
	boundary := 0
	for i, n := range members {
		if n.IsPinned {
			boundary = i + 1
		}
	}
	h.groups[tab.Group] = slices.Insert(members, boundary, moved)
	h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Changed: []schema.NativeTab{moved}}})
	return nil
}

// SetDirty flags a tab dirty or clean.
func (h *Host) SetDirty(tab schema.NativeTab, dirty bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[tab.Group]
	idx := slices.IndexFunc(members, func(n schema.NativeTab) bool { return sameTab(n, tab) })
	if idx < 0 {
		return ErrNoSuchTab
	}
	members[idx].IsDirty = dirty
	h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Changed: []schema.NativeTab{members[idx]}}})
	return nil
}

// SetLabel retitles a tab in place, the way hosts update the label of a
// live comparison. It returns the tab as the host now reports it.
func (h *Host) SetLabel(tab schema.NativeTab, label string) (schema.NativeTab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[tab.Group]
	idx := slices.IndexFunc(members, func(n schema.NativeTab) bool { return sameTab(n, tab) })
	if idx < 0 {
		return schema.NativeTab{}, ErrNoSuchTab
	}
	members[idx].Label = label
	h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Changed: []schema.NativeTab{members[idx]}}})
	return members[idx], nil
}

// OpenGroup adds an empty group.
func (h *Host) OpenGroup(col schema.GroupID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureGroupLocked(col)
}

// CloseGroup removes a group and every tab in it.
func (h *Host) CloseGroup(col schema.GroupID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	tabs, ok := h.groups[col]
	if !ok {
		return fmt.Errorf("hostsim: group %d: %w", col, schema.ErrGroupNotFound)
	}
	delete(h.groups, col)
	if h.activeGroup == col {
		h.activeGroup = 0
		if cols := h.columnsLocked(); len(cols) > 0 {
			h.activeGroup = cols[0]
		}
	}
	if len(tabs) > 0 {
		h.emitLocked(schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Closed: tabs}})
	}
	h.emitLocked(schema.HostEvent{Type: schema.HostEventGroups, Groups: schema.GroupChangeEvent{
		Closed: []schema.NativeGroup{{Column: col}},
	}})
	return nil
}

// FindTab returns the first native in group showing uri (diffs match on
// their modified side) or carrying label when uri is empty.
func (h *Host) FindTab(group schema.GroupID, uri, label string) (schema.NativeTab, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, tab := range h.groups[group] {
		switch {
		case uri != "" && classify.NormalizeLocator(tab.URI()) == classify.NormalizeLocator(uri) && (label == "" || tab.Label == label):
			return tab, true
		case uri == "" && tab.Label == label:
			return tab, true
		}
	}
	return schema.NativeTab{}, false
}
