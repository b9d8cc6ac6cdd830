package core

import (
	"context"
	"slices"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/hierarchy"
	"pkt.systems/sidetabs/internal/logx"
	"pkt.systems/sidetabs/schema"
)

// HandleTabChanges applies one batch of host tab changes: opened tabs in
// host order, then the closed sweep, then changed tabs, then the active
// state repair.
func (e *Engine) HandleTabChanges(ctx context.Context, ev schema.TabChangeEvent) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	log := pslog.Ctx(ctx)
	log.Trace("sync tab batch", "opened", len(ev.Opened), "changed", len(ev.Changed), "closed", len(ev.Closed))
	for _, native := range ev.Opened {
		e.openTabLocked(ctx, native)
	}
	if len(ev.Closed) > 0 {
		e.sweepClosedLocked(ctx)
	}
	for _, native := range ev.Changed {
		e.changeTabLocked(ctx, native)
	}
	e.syncActiveStateLocked(ctx)
}

// openTabLocked converts and stores one opened native tab. Failures are
// logged and never abort the batch.
func (e *Engine) openTabLocked(ctx context.Context, native schema.NativeTab) (schema.TabID, bool) {
	log := logx.WithNative(pslog.Ctx(ctx), native)
	native, natives, present := e.currentNative(ctx, native)
	if !present {
		log.Trace("sync tab gone before open")
		return "", false
	}
	tab, ok := convert.ConvertToSideTab(native, e.git, nativeIndex(natives, native))
	if !ok {
		log.Trace("sync tab skipped")
		return "", false
	}
	key := convert.NativeKey(native)
	if key != "" {
		if id, ok := e.keyIndex[key]; ok && e.store.HasTab(id) {
			tab.Metadata.ID = id
		}
		e.rememberKeyLocked(key, tab.ID())
	}
	if prev, ok := e.store.GetTab(tab.ID()); ok {
		tab = carryOver(prev, tab)
	}
	e.decorate(&tab)
	e.store.AddTab(tab)
	log = log.With("tab", tab.ID())
	if !tab.IsDiff() {
		e.trackParentDocument(ctx, tab)
		e.relinkChildrenLocked(ctx, tab.ID())
		log.Debug("sync tab opened")
		return tab.ID(), true
	}
	e.attachChildLocked(ctx, tab)
	log.Debug("sync diff opened", "diff_type", tab.Metadata.DiffType, "parent", tab.Metadata.ParentID)
	return tab.ID(), true
}

// relinkChildrenLocked registers diff tabs that were orphaned while their
// parent was closed.
func (e *Engine) relinkChildrenLocked(ctx context.Context, parentID schema.TabID) {
	for _, child := range e.hier.GetChildren(parentID) {
		if _, linked := e.hier.ParentOf(child.ID()); linked {
			continue
		}
		if err := e.hier.RegisterChild(child.ID(), parentID); err != nil {
			logx.WithTab(ctx, child.ID()).Debug("sync relink failed", "parent", parentID, "err", err)
		}
	}
}

func (e *Engine) trackParentDocument(ctx context.Context, tab schema.Tab) {
	if tab.Metadata.Kind != schema.TabKindFile || tab.Metadata.URI == "" {
		return
	}
	doc, _ := e.docs.GetOrCreateDocument(tab.Metadata.URI)
	if err := e.docs.AssociateParentTab(doc.ID, tab.ID()); err != nil {
		logx.WithDocument(pslog.Ctx(ctx), doc.ID).Debug("sync document vanished", "tab", tab.ID(), "err", err)
	}
}

// attachChildLocked resolves the parent of a diff tab, links the hierarchy
// and records the version. An unresolved parent leaves the tab an orphan.
func (e *Engine) attachChildLocked(ctx context.Context, tab schema.Tab) {
	log := logx.WithTab(ctx, tab.ID())
	parentID, ok := e.ensureParentLocked(ctx, tab)
	if ok {
		if err := e.hier.InheritState(tab.ID(), parentID); err != nil {
			log.Debug("sync inherit failed", "parent", parentID, "err", err)
		}
		if err := e.hier.RegisterChild(tab.ID(), parentID); err != nil {
			log.Debug("sync register child failed", "parent", parentID, "err", err)
		}
	} else {
		log.Debug("sync diff orphaned", "parent", tab.Metadata.ParentID)
	}
	e.registerVersionLocked(ctx, tab)
	if current, ok := e.store.GetTab(tab.ID()); ok {
		if stats := e.hier.CalculateDiffStats(current); stats != nil {
			_ = e.store.UpdateTabState(tab.ID(), func(t *schema.Tab) { t.State.DiffStats = stats })
		}
	}
}

func (e *Engine) registerVersionLocked(ctx context.Context, tab schema.Tab) {
	md := tab.Metadata
	locator := classify.ParentLocator(md.DiffType, md.URI, md.OriginalURI, md.ModifiedURI)
	if locator == "" {
		return
	}
	doc, _ := e.docs.GetOrCreateDocument(locator)
	log := logx.WithDocument(logx.WithTab(ctx, tab.ID()), doc.ID)
	if err := e.docs.AssociateChildTab(doc.ID, tab.ID()); err != nil {
		log.Debug("sync document vanished", "err", err)
		return
	}
	if _, ok := e.docs.FindVersionByRelatedTab(tab.ID()); ok {
		return
	}
	version := schema.Version{
		DiffType:     md.DiffType,
		Label:        md.Label,
		OriginalURI:  md.OriginalURI,
		ModifiedURI:  md.ModifiedURI,
		Stats:        tab.State.DiffStats,
		RelatedTabID: tab.ID(),
		IsActive:     tab.State.IsActive,
	}
	if _, err := e.docs.RegisterVersion(doc.ID, version); err != nil {
		log.Debug("sync register version failed", "err", err)
	}
}

// ensureParentLocked returns the id of the file tab that parents tab,
// opening it in the host when missing. Host state is re-read before every
// decision.
func (e *Engine) ensureParentLocked(ctx context.Context, tab schema.Tab) (schema.TabID, bool) {
	md := tab.Metadata
	if md.ParentID == "" {
		return "", false
	}
	if e.store.HasTab(md.ParentID) {
		return md.ParentID, true
	}
	locator := classify.ParentLocator(md.DiffType, md.URI, md.OriginalURI, md.ModifiedURI)
	if locator == "" {
		return "", false
	}
	group := tab.State.GroupID
	log := logx.WithGroup(logx.WithTab(ctx, tab.ID()), group).With("locator", locator)

	native, found := findFileNative(e.host.NativeTabs(ctx), group, locator)
	if !found {
		log.Debug("sync parent opening")
		if err := e.host.OpenDocument(ctx, locator, schema.OpenOptions{Group: group, Index: -1, Preview: false, PreserveFocus: true}); err != nil {
			log.Warn("sync parent open failed", "err", err)
			return "", false
		}
		native, found = findFileNative(e.host.NativeTabs(ctx), group, locator)
		if !found {
			log.Warn("sync parent missing after open")
			return "", false
		}
	}
	parentID, ok := e.openTabLocked(ctx, native)
	if !ok {
		return "", false
	}
	if parentID != md.ParentID {
		_ = e.store.UpdateTab(tab.ID(), func(t *schema.Tab) { t.Metadata.ParentID = parentID })
	}
	return parentID, true
}

// sweepClosedLocked removes store entries that no longer exist in the host.
// Non-diff tabs are matched by id. Diff tabs are matched by native key after
// retitled comparisons are re-keyed, and diff tabs without a key are never
// swept.
func (e *Engine) sweepClosedLocked(ctx context.Context) []schema.TabID {
	natives := e.host.NativeTabs(ctx)
	for _, native := range natives {
		key := convert.NativeKey(native)
		if key == "" {
			continue
		}
		if id, ok := e.keyIndex[key]; ok && e.store.HasTab(id) {
			continue
		}
		if id, ok := e.rekeyDiffLocked(native, natives); ok {
			e.retitleDiffLocked(ctx, id, native)
		}
	}
	present := make(map[schema.TabID]struct{}, len(natives))
	presentKeys := make(map[string]struct{})
	for _, native := range natives {
		if key := convert.NativeKey(native); key != "" {
			presentKeys[key] = struct{}{}
			continue
		}
		if id, ok := convert.GenerateIDFromNativeTab(native); ok {
			present[id] = struct{}{}
		}
	}
	var removed []schema.TabID
	for _, tab := range e.store.GetAllTabs() {
		if tab.IsDiff() {
			key, keyed := e.keyByID[tab.ID()]
			if !keyed {
				continue
			}
			if _, ok := presentKeys[key]; ok {
				continue
			}
		} else if _, ok := present[tab.ID()]; ok {
			continue
		}
		e.removeTabLocked(ctx, tab)
		removed = append(removed, tab.ID())
	}
	if len(removed) > 0 {
		pslog.Ctx(ctx).Debug("sync tabs swept", "count", len(removed))
	}
	return removed
}

// removeTabLocked drops a tab and every link that references it.
func (e *Engine) removeTabLocked(ctx context.Context, tab schema.Tab) {
	id := tab.ID()
	if tab.IsDiff() {
		e.hier.UnregisterChild(id)
		e.forgetKeyLocked(id)
	} else {
		for _, child := range e.hier.GetChildren(id) {
			e.hier.UnregisterChild(child.ID())
		}
	}
	e.docs.DissociateTab(id)
	e.store.RemoveTab(id)
	if e.lastPreviewSource == id {
		e.lastPreviewSource = ""
	}
	e.dropOperation(id)
	logx.WithTab(ctx, id).Debug("sync tab removed")
}

// changeTabLocked applies a changed native. Active/preview-only changes go
// out on the silent channel; anything else is structural and refreshes
// decorations.
func (e *Engine) changeTabLocked(ctx context.Context, native schema.NativeTab) {
	native, natives, present := e.currentNative(ctx, native)
	if !present {
		return
	}
	id, ok := e.nativeIDLocked(native)
	if !ok || !e.store.HasTab(id) {
		if id, ok := e.rekeyDiffLocked(native, natives); ok {
			e.retitleDiffLocked(ctx, id, native)
			return
		}
		if !convert.IsPreviewSurface(native) {
			e.openTabLocked(ctx, native)
		}
		// Webview and unknown ids follow the label, so a retitle leaves the
		// old entity behind.
		e.sweepClosedLocked(ctx)
		return
	}
	prev, _ := e.store.GetTab(id)
	log := logx.WithTab(ctx, id)
	st := prev.State
	if prev.IsDiff() && st.IsActive != native.IsActive {
		defer e.mirrorActiveVersion(ctx, id, native.IsActive)
	}
	if st.IsDirty == native.IsDirty && st.IsPinned == native.IsPinned && prev.Metadata.Label == native.Label {
		if st.IsActive == native.IsActive && st.IsPreview == native.IsPreview {
			return
		}
		_ = e.store.UpdateTabSilent(id, func(t *schema.Tab) {
			t.State.IsActive = native.IsActive
			t.State.IsPreview = native.IsPreview
		})
		log.Trace("sync tab changed", "silent", true)
		return
	}
	_ = e.store.UpdateTab(id, func(t *schema.Tab) {
		t.Metadata.Label = native.Label
		t.State.IsActive = native.IsActive
		t.State.IsDirty = native.IsDirty
		t.State.IsPinned = native.IsPinned
		t.State.IsPreview = native.IsPreview
		t.State.LastAccess = now()
		e.decorate(t)
	})
	log.Trace("sync tab changed", "silent", false)
}

// rekeyDiffLocked moves the key of a retitled comparison onto its existing
// entity. A candidate shows the same sides in the same group and its old
// key is gone from the host.
func (e *Engine) rekeyDiffLocked(native schema.NativeTab, natives []schema.NativeTab) (schema.TabID, bool) {
	in, ok := native.Input.(schema.DiffInput)
	if !ok {
		return "", false
	}
	live := make(map[string]struct{}, len(natives))
	for _, n := range natives {
		if key := convert.NativeKey(n); key != "" {
			live[key] = struct{}{}
		}
	}
	slot := convert.DiffSlot(in.Original, in.Modified, native.Group)
	for _, tab := range e.store.GetTabsInGroup(native.Group) {
		key, keyed := e.keyByID[tab.ID()]
		if !tab.IsDiff() || !keyed {
			continue
		}
		if _, ok := live[key]; ok {
			continue
		}
		md := tab.Metadata
		if convert.DiffSlot(md.OriginalURI, md.ModifiedURI, tab.State.GroupID) != slot {
			continue
		}
		e.forgetKeyLocked(tab.ID())
		e.rememberKeyLocked(convert.NativeKey(native), tab.ID())
		return tab.ID(), true
	}
	return "", false
}

// retitleDiffLocked applies a new host label to an existing comparison. The
// diff type and parent stay as classified at open; edit counts follow the
// label into the tab and its version.
func (e *Engine) retitleDiffLocked(ctx context.Context, id schema.TabID, native schema.NativeTab) {
	prev, ok := e.store.GetTab(id)
	if !ok {
		return
	}
	log := logx.WithTab(ctx, id)
	var stats *schema.DiffStats
	if prev.Metadata.DiffType == schema.DiffEdit {
		if added, removed, ok := classify.ParseEditCounts(native.Label); ok {
			stats = &schema.DiffStats{LinesAdded: added, LinesRemoved: removed}
			if prev.State.DiffStats != nil {
				merged := *prev.State.DiffStats
				merged.LinesAdded, merged.LinesRemoved = added, removed
				stats = &merged
			}
		}
	}
	if v, ok := e.docs.FindVersionByRelatedTab(id); ok {
		if err := e.docs.RetitleVersion(v.DocumentID, v.ID, native.Label, stats); err != nil {
			log.Debug("sync retitle version failed", "version", v.ID, "err", err)
		}
	}
	_ = e.store.UpdateTab(id, func(t *schema.Tab) {
		t.Metadata.Label = native.Label
		t.State.IsActive = native.IsActive
		t.State.IsDirty = native.IsDirty
		t.State.IsPinned = native.IsPinned
		t.State.IsPreview = native.IsPreview
		t.State.LastAccess = now()
		if stats != nil {
			t.State.DiffStats = stats
		}
	})
	if prev.State.IsActive != native.IsActive {
		e.mirrorActiveVersion(ctx, id, native.IsActive)
	}
	log.Debug("sync diff retitled", "from", prev.Metadata.Label, "to", native.Label)
}

// HandleGroupChanges applies host group changes.
func (e *Engine) HandleGroupChanges(ctx context.Context, ev schema.GroupChangeEvent) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	log := pslog.Ctx(ctx)
	for _, g := range ev.Opened {
		e.store.AddGroup(g.Column, g.IsActive)
		log.Debug("sync group opened", "group", int(g.Column))
	}
	for _, g := range ev.Closed {
		for _, tab := range e.store.GetTabsInGroup(g.Column) {
			e.removeTabLocked(ctx, tab)
		}
		e.store.RemoveGroup(g.Column)
		log.Debug("sync group closed", "group", int(g.Column))
	}
	for _, g := range ev.Changed {
		e.store.AddGroup(g.Column, g.IsActive)
	}
	e.syncGroupsActiveLocked(ctx)
	e.syncActiveStateLocked(ctx)
}

func (e *Engine) syncGroupsActiveLocked(ctx context.Context) {
	for _, g := range e.host.NativeGroups(ctx) {
		if g.IsActive {
			e.store.SetGroupActive(g.Column)
			return
		}
	}
}

// HandleActiveEditor tracks the source document of an active preview and
// refreshes active state.
func (e *Engine) HandleActiveEditor(ctx context.Context, ev schema.ActiveEditorEvent) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if ev.URI != "" {
		if doc, ok := e.docs.FindDocumentByURI(ev.URI); ok {
			_ = e.docs.Touch(doc.ID)
		}
		if active, ok := e.activeNativeIn(ctx, ev.Group); ok && convert.IsPreviewSurface(active) {
			if tab, ok := e.store.FindTabByURI(ev.URI, ev.Group); ok {
				e.lastPreviewSource = tab.ID()
				pslog.Ctx(ctx).Trace("sync preview source moved", "tab", tab.ID())
			}
		}
	}
	e.syncActiveStateLocked(ctx)
}

func (e *Engine) activeNativeIn(ctx context.Context, group schema.GroupID) (schema.NativeTab, bool) {
	for _, native := range e.host.NativeTabs(ctx) {
		if native.IsActive && (group == 0 || native.Group == group) {
			return native, true
		}
	}
	return schema.NativeTab{}, false
}

// HandleDiagnostics refreshes diagnostic and git decoration of the tabs
// showing the listed resources. An empty list refreshes every tab.
func (e *Engine) HandleDiagnostics(ctx context.Context, ev schema.DiagnosticsEvent) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	wanted := make(map[string]struct{}, len(ev.URIs))
	for _, uri := range ev.URIs {
		wanted[classify.NormalizeLocator(uri)] = struct{}{}
	}
	updated := 0
	for _, tab := range e.store.GetAllTabs() {
		if tab.IsDiff() || tab.Metadata.URI == "" {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[classify.NormalizeLocator(tab.Metadata.URI)]; !ok {
				continue
			}
		}
		next := tab
		e.decorate(&next)
		if next.State.Diagnostic == tab.State.Diagnostic && next.State.GitStatus == tab.State.GitStatus {
			continue
		}
		_ = e.store.UpdateTabState(tab.ID(), func(t *schema.Tab) {
			t.State.Diagnostic = next.State.Diagnostic
			t.State.GitStatus = next.State.GitStatus
			t.State.Integrations.Git = next.State.Integrations.Git
		})
		updated++
	}
	pslog.Ctx(ctx).Trace("sync decorations refreshed", "uris", len(ev.URIs), "updated", updated)
}

// SyncActiveState enforces at most one active tab per group.
func (e *Engine) SyncActiveState(ctx context.Context) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	e.syncActiveStateLocked(ctx)
}

// syncActiveStateLocked maps the host's active tabs onto the store. An
// active preview surface makes its source file tab active. Every other tab
// is demoted, all on the silent channel.
func (e *Engine) syncActiveStateLocked(ctx context.Context) {
	natives := e.host.NativeTabs(ctx)
	chosen := make(map[schema.GroupID]schema.TabID)
	for _, native := range natives {
		if !native.IsActive {
			continue
		}
		if _, taken := chosen[native.Group]; taken {
			continue
		}
		if name, ok := convert.PreviewSourceName(native); ok {
			if id, ok := e.previewSourceLocked(native.Group, name); ok {
				chosen[native.Group] = id
			}
			continue
		}
		if id, ok := e.nativeIDLocked(native); ok && e.store.HasTab(id) {
			chosen[native.Group] = id
		}
	}
	tabs := e.store.GetAllTabs()
	for _, tab := range tabs {
		group := tab.State.GroupID
		if _, ok := chosen[group]; ok || !tab.State.IsActive {
			continue
		}
		// No host answer for this group: keep the first already-active tab.
		chosen[group] = tab.ID()
	}
	demoted := 0
	for _, tab := range tabs {
		want := chosen[tab.State.GroupID] == tab.ID()
		if tab.State.IsActive == want {
			continue
		}
		if !want {
			demoted++
		}
		_ = e.store.UpdateTabSilent(tab.ID(), func(t *schema.Tab) { t.State.IsActive = want })
		if tab.IsDiff() {
			e.mirrorActiveVersion(ctx, tab.ID(), want)
		}
	}
	if demoted > 0 {
		pslog.Ctx(ctx).Trace("sync active demoted", "count", demoted)
	}
}

// mirrorActiveVersion carries a diff tab's activeness to its version.
func (e *Engine) mirrorActiveVersion(ctx context.Context, id schema.TabID, active bool) {
	v, ok := e.docs.FindVersionByRelatedTab(id)
	if !ok {
		return
	}
	var err error
	if active {
		err = e.docs.SetActiveVersion(v.DocumentID, v.ID)
	} else {
		err = e.docs.DeactivateVersion(v.DocumentID, v.ID)
	}
	if err != nil {
		logx.WithTab(ctx, id).Debug("sync version activeness failed", "version", v.ID, "active", active, "err", err)
	}
}

// previewSourceLocked resolves the source tab of a preview surface. The last
// preview source wins when it still matches the rendered file name.
func (e *Engine) previewSourceLocked(group schema.GroupID, fileName string) (schema.TabID, bool) {
	if e.lastPreviewSource != "" {
		if tab, ok := e.store.GetTab(e.lastPreviewSource); ok && tab.State.GroupID == group && tab.Metadata.FileName == fileName {
			return tab.ID(), true
		}
	}
	for _, tab := range e.store.GetTabsInGroup(group) {
		if !tab.IsDiff() && tab.Metadata.FileName == fileName {
			e.lastPreviewSource = tab.ID()
			return tab.ID(), true
		}
	}
	return "", false
}

// SyncAll rebuilds the store from the host. File-like tabs are converted
// first so every diff finds its parent; the store is replaced in one
// structural event and hierarchy counts are recalculated once.
func (e *Engine) SyncAll(ctx context.Context) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	log := pslog.Ctx(ctx)
	natives := e.host.NativeTabs(ctx)
	nativeGroups := e.host.NativeGroups(ctx)

	groups := make([]schema.Group, 0, len(nativeGroups))
	for _, g := range nativeGroups {
		groups = append(groups, schema.Group{ID: g.Column, IsActive: g.IsActive})
	}
	byID := make(map[schema.TabID]schema.Tab, len(natives))
	var order []schema.TabID
	var diffs []schema.NativeTab
	for _, native := range natives {
		if native.Kind() == schema.TabKindDiff {
			diffs = append(diffs, native)
			continue
		}
		tab, ok := convert.ConvertToSideTab(native, e.git, nativeIndex(natives, native))
		if !ok {
			continue
		}
		if prev, ok := e.store.GetTab(tab.ID()); ok {
			tab = carryOver(prev, tab)
		}
		e.decorate(&tab)
		if _, dup := byID[tab.ID()]; !dup {
			order = append(order, tab.ID())
		}
		byID[tab.ID()] = tab
	}

	keyIndex := make(map[string]schema.TabID, len(diffs))
	keyByID := make(map[schema.TabID]string, len(diffs))
	for _, native := range diffs {
		tab, ok := convert.ConvertToSideTab(native, e.git, nativeIndex(natives, native))
		if !ok {
			continue
		}
		key := convert.NativeKey(native)
		if id, ok := e.keyIndex[key]; ok {
			tab.Metadata.ID = id
		}
		if prev, ok := e.store.GetTab(tab.ID()); ok {
			tab = carryOver(prev, tab)
		}
		if parent, ok := byID[tab.Metadata.ParentID]; ok {
			if mode, ok := hierarchy.InheritedViewMode(parent); ok {
				tab.State.ViewMode = mode
			}
		}
		if stats := e.hier.CalculateDiffStats(tab); stats != nil {
			tab.State.DiffStats = stats
		}
		keyIndex[key] = tab.ID()
		keyByID[tab.ID()] = key
		if _, dup := byID[tab.ID()]; !dup {
			order = append(order, tab.ID())
		}
		byID[tab.ID()] = tab
	}
	// Keyless diffs are derived entities; a resync keeps them.
	for _, tab := range e.store.GetAllTabs() {
		if _, keyed := e.keyByID[tab.ID()]; tab.IsDiff() && !keyed {
			if _, ok := byID[tab.ID()]; !ok && slices.ContainsFunc(groups, func(g schema.Group) bool { return g.ID == tab.State.GroupID }) {
				byID[tab.ID()] = tab
				order = append(order, tab.ID())
			}
		}
	}

	tabs := make([]schema.Tab, 0, len(order))
	for _, id := range order {
		tabs = append(tabs, byID[id])
	}
	e.keyIndex = keyIndex
	e.keyByID = keyByID
	e.store.ReplaceAll(tabs, groups)

	for _, tab := range tabs {
		if tab.IsDiff() {
			e.registerVersionLocked(ctx, tab)
		} else {
			e.trackParentDocument(ctx, tab)
		}
	}
	e.hier.RecalculateAllCounts()
	e.syncActiveStateLocked(ctx)
	log.Info("sync resynced", "tabs", len(tabs), "groups", len(groups), "diffs", len(keyIndex))
}

