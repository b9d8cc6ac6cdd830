package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/hostsim"
	"pkt.systems/sidetabs/schema"
)

func newTestEngine(t *testing.T, cfg schema.EngineConfig) (*Engine, *hostsim.Host) {
	t.Helper()
	host := hostsim.New(nil, 1, 2)
	e, err := NewEngine(cfg, EngineDeps{Host: host, Diagnostics: host})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, host
}

func settle(e *Engine, host *hostsim.Host) {
	hostsim.Drain(context.Background(), host, e)
}

func fileNative(uri string, group schema.GroupID) schema.NativeTab {
	return schema.NativeTab{Label: classify.BaseName(uri), Group: group, Input: schema.FileInput{URI: uri}}
}

func diffNative(label, original, modified string, group schema.GroupID) schema.NativeTab {
	return schema.NativeTab{Label: label, Group: group, Input: schema.DiffInput{Original: original, Modified: modified}}
}

func mustTab(t *testing.T, e *Engine, id schema.TabID) schema.Tab {
	t.Helper()
	tab, err := e.GetTab(id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return tab
}

func groupOrder(e *Engine, group schema.GroupID) []schema.TabID {
	var ids []schema.TabID
	for _, tab := range e.GetTabsInGroup(group) {
		ids = append(ids, tab.ID())
	}
	return ids
}

func activeCount(e *Engine, group schema.GroupID) int {
	n := 0
	for _, tab := range e.GetTabsInGroup(group) {
		if tab.State.IsActive {
			n++
		}
	}
	return n
}

const (
	aGo     = "file:///w/a.go"
	bGo     = "file:///w/b.go"
	cGo     = "file:///w/c.go"
	dGo     = "file:///w/d.go"
	readme  = "file:///w/README.md"
	gitA    = "git:/w/a.go?ref=HEAD"
	gitRead = "git:/w/README.md?ref=HEAD"
	editA   = "chat-editing-text-model:/w/a.go"
)

func TestSyncAllCountsChildren(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(diffNative("a.go (Working Tree)", gitA, aGo, 1))
	host.OpenTab(diffNative("a.go (Index)", gitA, aGo, 1))
	e.SyncAll(context.Background())

	parentID := schema.FileTabID(aGo, 1)
	parent := mustTab(t, e, parentID)
	if parent.State.ChildrenCount != 2 || !parent.State.HasChildren || !parent.State.Capabilities.CanExpand {
		t.Fatalf("expected parent with 2 children, got %+v", parent.State)
	}
	children := e.Children(parentID)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	for _, child := range children {
		if !child.State.IsChild {
			t.Fatalf("expected child flag on %s", child.ID())
		}
	}
	if n := activeCount(e, 1); n != 1 {
		t.Fatalf("expected one active tab, got %d", n)
	}

	// Replaying the queued notifications must not duplicate diff entities.
	settle(e, host)
	if got := len(e.GetAllTabs()); got != 3 {
		t.Fatalf("expected 3 tabs after replay, got %d", got)
	}
	if got := mustTab(t, e, parentID).State.ChildrenCount; got != 2 {
		t.Fatalf("expected 2 children after replay, got %d", got)
	}
	e.SyncAll(context.Background())
	if got := len(e.GetAllTabs()); got != 3 {
		t.Fatalf("expected 3 tabs after second resync, got %d", got)
	}
	doc, ok := e.Documents().FindDocumentByURI(aGo)
	if !ok {
		t.Fatalf("expected a document for a.go")
	}
	if doc.ParentTabID != parentID || len(doc.ChildTabIDs) != 2 || doc.VersionCount != 2 {
		t.Fatalf("unexpected document links: parent=%s children=%d versions=%d", doc.ParentTabID, len(doc.ChildTabIDs), doc.VersionCount)
	}
}

func TestDiffOpensMissingParent(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(diffNative("b.go (Working Tree)", "git:/w/b.go", bGo, 1))
	settle(e, host)

	native, ok := host.FindTab(1, bGo, "b.go")
	if !ok {
		t.Fatalf("expected the parent to be opened in the host")
	}
	if native.IsActive {
		t.Fatalf("parent must be opened without focus")
	}
	parent := mustTab(t, e, schema.FileTabID(bGo, 1))
	if parent.State.ChildrenCount != 1 {
		t.Fatalf("expected one child, got %d", parent.State.ChildrenCount)
	}
	children := e.Children(parent.ID())
	if len(children) != 1 || children[0].Metadata.DiffType != schema.DiffWorkingTree {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestDiffStaysOrphanWhenParentCannotOpen(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.FailNextOpens(1)
	host.OpenTab(diffNative("c.go (Working Tree)", "git:/w/c.go", cGo, 1))
	settle(e, host)

	tabs := e.GetAllTabs()
	if len(tabs) != 1 {
		t.Fatalf("expected only the orphan diff, got %d tabs", len(tabs))
	}
	if !tabs[0].IsDiff() || tabs[0].State.IsChild {
		t.Fatalf("expected a standalone diff, got %+v", tabs[0].State)
	}
}

func TestSingleActiveTabPerGroup(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(fileNative(bGo, 1))
	host.OpenTab(fileNative(cGo, 1))
	host.OpenTab(fileNative(dGo, 2))
	settle(e, host)

	for _, tab := range e.GetAllTabs() {
		_ = e.store.UpdateTabSilent(tab.ID(), func(t *schema.Tab) { t.State.IsActive = true })
	}
	e.SyncActiveState(context.Background())
	for _, group := range []schema.GroupID{1, 2} {
		if n := activeCount(e, group); n != 1 {
			t.Fatalf("group %d: expected one active tab, got %d", group, n)
		}
	}
	if !mustTab(t, e, schema.FileTabID(cGo, 1)).State.IsActive {
		t.Fatalf("expected the host's active tab to win")
	}
}

func TestPreviewActivatesSourceTab(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(readme, 1))
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(schema.NativeTab{Label: "Preview README.md", Group: 1, Input: schema.WebviewInput{ViewType: "markdown.preview"}})
	settle(e, host)

	if len(e.GetAllTabs()) != 2 {
		t.Fatalf("preview surface must not become a tab")
	}
	if !mustTab(t, e, schema.FileTabID(readme, 1)).State.IsActive {
		t.Fatalf("expected README.md to carry the preview's activeness")
	}
	if activeCount(e, 1) != 1 {
		t.Fatalf("expected a single active tab")
	}
}

func TestClosingDiffNativeRemovesEntity(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	diff := host.OpenTab(diffNative("a.go (Working Tree)", gitA, aGo, 1))
	settle(e, host)
	parentID := schema.FileTabID(aGo, 1)
	if got := mustTab(t, e, parentID).State.ChildrenCount; got != 1 {
		t.Fatalf("expected one child, got %d", got)
	}
	if err := host.CloseTab(diff); err != nil {
		t.Fatalf("close: %v", err)
	}
	settle(e, host)
	if got := len(e.GetAllTabs()); got != 1 {
		t.Fatalf("expected diff entity removed, %d tabs left", got)
	}
	parent := mustTab(t, e, parentID)
	if parent.State.ChildrenCount != 0 || parent.State.HasChildren {
		t.Fatalf("expected parent counters reset, got %+v", parent.State)
	}
}

func TestDerivedDiffSurvivesSweep(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	a := host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(fileNative(bGo, 1))
	settle(e, host)

	derived := schema.Tab{
		Metadata: schema.TabMetadata{
			ID:          "diff-derived",
			Kind:        schema.TabKindDiff,
			Label:       "a.go (Working Tree)",
			URI:         aGo,
			OriginalURI: gitA,
			ModifiedURI: aGo,
			DiffType:    schema.DiffWorkingTree,
			ParentID:    schema.FileTabID(aGo, 1),
		},
		State: schema.TabState{GroupID: 1, Index: -1},
	}
	e.store.AddTab(derived)
	if err := host.CloseTab(a); err != nil {
		t.Fatalf("close: %v", err)
	}
	settle(e, host)

	if _, err := e.GetTab(schema.FileTabID(aGo, 1)); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected the file tab removed, got %v", err)
	}
	if _, err := e.GetTab("diff-derived"); err != nil {
		t.Fatalf("derived diff must survive the sweep: %v", err)
	}
}

func TestChangedActiveOnlyIsSilent(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(fileNative(bGo, 1))
	settle(e, host)

	structural, cancelStructural := e.Subscribe(schema.ChannelStructural)
	defer cancelStructural()
	silent, cancelSilent := e.Subscribe(schema.ChannelSilent)
	defer cancelSilent()

	if err := host.ActivateNativeTab(context.Background(), 1, 0); err != nil {
		t.Fatalf("activate: %v", err)
	}
	settle(e, host)
	if len(structural) != 0 {
		t.Fatalf("focus change must not publish structural events, got %d", len(structural))
	}
	if len(silent) == 0 {
		t.Fatalf("expected silent events for the focus change")
	}
	if !mustTab(t, e, schema.FileTabID(aGo, 1)).State.IsActive {
		t.Fatalf("expected a.go active")
	}

	native, _ := host.FindTab(1, bGo, "")
	if err := host.SetDirty(native, true); err != nil {
		t.Fatalf("dirty: %v", err)
	}
	settle(e, host)
	if len(structural) == 0 {
		t.Fatalf("dirty change must publish a structural event")
	}
	if !mustTab(t, e, schema.FileTabID(bGo, 1)).State.IsDirty {
		t.Fatalf("expected b.go dirty")
	}
}

func diffTabs(e *Engine) []schema.Tab {
	var out []schema.Tab
	for _, tab := range e.GetAllTabs() {
		if tab.IsDiff() {
			out = append(out, tab)
		}
	}
	return out
}

func TestRetitledEditDiffKeepsOneEntity(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	diff := host.OpenTab(diffNative("a.go+6-6", editA, aGo, 1))
	settle(e, host)
	parentID := schema.FileTabID(aGo, 1)
	children := e.Children(parentID)
	if len(children) != 1 {
		t.Fatalf("expected one child, got %d", len(children))
	}
	diffID := children[0].ID()

	if _, err := host.SetLabel(diff, "a.go+9-6"); err != nil {
		t.Fatalf("relabel: %v", err)
	}
	settle(e, host)

	diffs := diffTabs(e)
	if len(diffs) != 1 || diffs[0].ID() != diffID {
		t.Fatalf("expected the original diff entity only, got %d diffs", len(diffs))
	}
	got := diffs[0]
	if got.Metadata.Label != "a.go+9-6" {
		t.Fatalf("expected new label, got %q", got.Metadata.Label)
	}
	if st := got.State.DiffStats; st == nil || st.LinesAdded != 9 || st.LinesRemoved != 6 {
		t.Fatalf("expected +9 -6 stats, got %+v", st)
	}
	parent := mustTab(t, e, parentID)
	if parent.State.ChildrenCount != 1 || !parent.State.HasChildren {
		t.Fatalf("expected exactly one child, got %+v", parent.State)
	}
	doc, ok := e.Documents().FindDocumentByURI(aGo)
	if !ok || doc.VersionCount != 1 {
		t.Fatalf("expected a single version, got %+v", doc)
	}
	v, ok := e.Documents().FindVersionByRelatedTab(diffID)
	if !ok || v.Label != "a.go+9-6" || v.Stats == nil || v.Stats.LinesAdded != 9 {
		t.Fatalf("expected the version retitled, got %+v", v)
	}

	current, ok := host.FindTab(1, aGo, "a.go+9-6")
	if !ok {
		t.Fatalf("retitled native missing from host")
	}
	if err := host.CloseTab(current); err != nil {
		t.Fatalf("close: %v", err)
	}
	settle(e, host)
	if n := len(diffTabs(e)); n != 0 {
		t.Fatalf("expected the retitled diff swept on close, %d left", n)
	}
	if got := mustTab(t, e, parentID).State.ChildrenCount; got != 0 {
		t.Fatalf("expected parent counters reset, got %d", got)
	}
}

func TestRetitledWebviewReplacesEntity(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	view := host.OpenTab(schema.NativeTab{Label: "Settings", Group: 1, Input: schema.WebviewInput{ViewType: "settings"}})
	settle(e, host)
	oldID, _ := convert.GenerateIDFromNativeTab(view)
	mustTab(t, e, oldID)

	renamed, err := host.SetLabel(view, "Settings (Workspace)")
	if err != nil {
		t.Fatalf("relabel: %v", err)
	}
	settle(e, host)
	newID, _ := convert.GenerateIDFromNativeTab(renamed)
	if got := mustTab(t, e, newID); got.Metadata.Label != "Settings (Workspace)" {
		t.Fatalf("unexpected label %q", got.Metadata.Label)
	}
	if _, err := e.GetTab(oldID); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected the old webview entity removed, got %v", err)
	}
	if got := len(e.GetAllTabs()); got != 2 {
		t.Fatalf("expected 2 tabs, got %d", got)
	}
}

func TestHostFocusMirrorsActiveVersion(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	ctx := context.Background()
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(diffNative("a.go (Working Tree)", gitA, aGo, 1))
	settle(e, host)
	children := e.Children(schema.FileTabID(aGo, 1))
	if len(children) != 1 {
		t.Fatalf("expected one child, got %d", len(children))
	}
	diffID := children[0].ID()
	version := func() schema.Version {
		t.Helper()
		v, ok := e.Documents().FindVersionByRelatedTab(diffID)
		if !ok {
			t.Fatalf("missing version for %s", diffID)
		}
		return v
	}
	if !version().IsActive {
		t.Fatalf("expected the focused diff's version active")
	}

	if err := host.ActivateNativeTab(ctx, 1, 0); err != nil {
		t.Fatalf("activate file: %v", err)
	}
	settle(e, host)
	if version().IsActive {
		t.Fatalf("expected the version inactive after the host focused the file")
	}
	if doc, _ := e.Documents().FindDocumentByURI(aGo); doc.ActiveVersionID != "" {
		t.Fatalf("expected no active version, got %q", doc.ActiveVersionID)
	}

	if err := host.ActivateNativeTab(ctx, 1, 1); err != nil {
		t.Fatalf("activate diff: %v", err)
	}
	settle(e, host)
	if !version().IsActive {
		t.Fatalf("expected the version active after the host focused the diff")
	}
}

func TestDiagnosticsRefreshDecoration(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(fileNative(bGo, 1))
	settle(e, host)

	host.SetDiagnostic(aGo, schema.DiagnosticError)
	settle(e, host)
	if got := mustTab(t, e, schema.FileTabID(aGo, 1)).State.Diagnostic; got != schema.DiagnosticError {
		t.Fatalf("expected error severity, got %q", got)
	}
	if got := mustTab(t, e, schema.FileTabID(bGo, 1)).State.Diagnostic; got != schema.DiagnosticNone {
		t.Fatalf("expected b.go untouched, got %q", got)
	}
}

func TestGroupCloseRemovesMembers(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	host.OpenTab(fileNative(bGo, 2))
	settle(e, host)
	if err := host.CloseGroup(2); err != nil {
		t.Fatalf("close group: %v", err)
	}
	settle(e, host)
	if _, err := e.GetGroup(2); !errors.Is(err, schema.ErrGroupNotFound) {
		t.Fatalf("expected group 2 removed, got %v", err)
	}
	if len(e.GetAllTabs()) != 1 {
		t.Fatalf("expected only group 1 tabs left")
	}
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	e, host := newTestEngine(t, schema.EngineConfig{})
	host.OpenTab(fileNative(aGo, 1))
	events := make(chan schema.HostEvent, 1)
	events <- schema.HostEvent{Type: schema.HostEventTabs, Tabs: schema.TabChangeEvent{Opened: []schema.NativeTab{fileNative(aGo, 1)}}}
	close(events)
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), events) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after events closed")
	}
	if len(e.GetAllTabs()) != 1 {
		t.Fatalf("expected the resync to ingest a.go")
	}
}
