package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/hierarchy"
	"pkt.systems/sidetabs/internal/logx"
	"pkt.systems/sidetabs/schema"
)

func (e *Engine) requireTab(id schema.TabID) (schema.Tab, error) {
	if id == "" {
		return schema.Tab{}, schema.ErrInvalidRequest
	}
	tab, ok := e.store.GetTab(id)
	if !ok {
		return schema.Tab{}, fmt.Errorf("tab %s: %w", id, schema.ErrTabNotFound)
	}
	return tab, nil
}

// PinTab pins or unpins a tab in the host and moves it to the pin boundary
// of its group: after the last pinned tab when pinning, to the first
// unpinned slot when unpinning.
func (e *Engine) PinTab(ctx context.Context, req schema.PinTabRequest) (schema.PinTabResponse, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.PinTabResponse{}, err
	}
	if tab.State.IsPinned == req.Pinned {
		return schema.PinTabResponse{Tab: tab}, nil
	}
	if req.Pinned && !tab.State.Capabilities.CanPin {
		return schema.PinTabResponse{}, fmt.Errorf("pin tab: %w", schema.ErrInvalidRequest)
	}
	log := logx.WithTab(ctx, tab.ID())
	if native, _, ok := e.findNativeLocked(ctx, tab.ID()); ok {
		if err := e.host.SetNativePinned(ctx, native, req.Pinned); err != nil {
			log.Warn("action pin failed", "err", err)
			return schema.PinTabResponse{}, fmt.Errorf("pin tab: %w", err)
		}
	}
	if err := e.store.UpdateTab(tab.ID(), func(t *schema.Tab) { t.State.IsPinned = req.Pinned }); err != nil {
		return schema.PinTabResponse{}, err
	}
	var others []schema.TabID
	boundary := 0
	for _, t := range e.store.GetTabsInGroup(tab.State.GroupID) {
		if t.ID() == tab.ID() {
			continue
		}
		others = append(others, t.ID())
		if t.State.IsPinned {
			boundary = len(others)
		}
	}
	order := slices.Insert(others, boundary, tab.ID())
	if err := e.store.SetGroupOrder(tab.State.GroupID, order); err != nil {
		return schema.PinTabResponse{}, err
	}
	updated, _ := e.store.GetTab(tab.ID())
	log.Info("action pinned", "pinned", req.Pinned, "index", updated.State.Index)
	return schema.PinTabResponse{Tab: updated}, nil
}

// closeTargets selects the tabs a close request affects.
func (e *Engine) closeTargets(req schema.CloseTabsRequest) ([]schema.Tab, error) {
	scope := req.Scope
	if scope == "" {
		scope = schema.CloseOne
	}
	if scope == schema.CloseGroup && req.TabID == "" {
		if _, ok := e.store.GetGroup(req.GroupID); !ok {
			return nil, fmt.Errorf("close group %d: %w", req.GroupID, schema.ErrGroupNotFound)
		}
		return e.store.GetTabsInGroup(req.GroupID), nil
	}
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return nil, err
	}
	members := e.store.GetTabsInGroup(tab.State.GroupID)
	switch scope {
	case schema.CloseOne:
		return []schema.Tab{tab}, nil
	case schema.CloseGroup:
		return members, nil
	case schema.CloseOthers:
		keep := map[schema.TabID]struct{}{tab.ID(): {}}
		if family, err := e.hier.Family(tab.ID()); err == nil {
			for _, f := range family {
				keep[f.ID()] = struct{}{}
			}
		}
		var out []schema.Tab
		for _, t := range members {
			if _, ok := keep[t.ID()]; ok || t.State.IsPinned {
				continue
			}
			out = append(out, t)
		}
		return out, nil
	case schema.CloseToRight:
		var out []schema.Tab
		for _, t := range members {
			if t.State.Index > tab.State.Index && !t.State.IsPinned {
				out = append(out, t)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("close scope %q: %w", scope, schema.ErrInvalidRequest)
	}
}

// CloseTabs closes tabs in the host and removes whatever the host no longer
// shows. Derived diff tabs without a host counterpart are removed directly.
func (e *Engine) CloseTabs(ctx context.Context, req schema.CloseTabsRequest) (schema.CloseTabsResponse, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	targets, err := e.closeTargets(req)
	if err != nil {
		return schema.CloseTabsResponse{}, err
	}
	var natives []schema.NativeTab
	var derived []schema.Tab
	for _, tab := range targets {
		if native, _, ok := e.findNativeLocked(ctx, tab.ID()); ok {
			natives = append(natives, native)
			continue
		}
		derived = append(derived, tab)
	}
	if len(natives) > 0 {
		if err := e.host.CloseNativeTabs(ctx, natives); err != nil {
			pslog.Ctx(ctx).Warn("action close failed", "tabs", len(natives), "err", err)
			return schema.CloseTabsResponse{}, fmt.Errorf("close tabs: %w", err)
		}
	}
	var closed []schema.TabID
	for _, tab := range derived {
		e.removeTabLocked(ctx, tab)
		closed = append(closed, tab.ID())
	}
	closed = append(closed, e.sweepClosedLocked(ctx)...)
	e.syncActiveStateLocked(ctx)
	pslog.Ctx(ctx).Info("action closed", "scope", req.Scope, "closed", len(closed))
	return schema.CloseTabsResponse{Closed: closed}, nil
}

// ActivateTab focuses a tab in the host. Strategies run in order: the
// rendered preview of a markdown tab, the native tab at its host index, and
// finally reopening the resource, retried a bounded number of times.
func (e *Engine) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.ActivateTabResponse{}, err
	}
	log := logx.WithTab(ctx, tab.ID())
	group := tab.State.GroupID
	attempts := 0
	strategy, lastErr := schema.ActivateStrategy(""), error(nil)

	if convert.IsMarkdown(tab.Metadata) && tab.State.ViewMode == schema.ViewModePreview {
		if _, idx, ok := findPreviewNative(e.host.NativeTabs(ctx), group, tab.Metadata.FileName); ok {
			attempts++
			if lastErr = e.host.ActivateNativeTab(ctx, group, idx); lastErr == nil {
				strategy = schema.ActivatePreview
				e.lastPreviewSource = tab.ID()
			}
		}
	}
	if strategy == "" {
		if _, idx, ok := e.findNativeLocked(ctx, tab.ID()); ok && idx >= 0 {
			attempts++
			if lastErr = e.host.ActivateNativeTab(ctx, group, idx); lastErr == nil {
				strategy = schema.ActivateNativeIndex
			} else {
				log.Debug("action activate by index failed", "index", idx, "err", lastErr)
			}
		}
	}
	if strategy == "" && tab.Metadata.URI != "" {
		opts := schema.OpenOptions{Group: group, Index: -1, Preview: tab.State.IsPreview}
		for i := 0; i < e.cfg.ActivateAttempts; i++ {
			if i > 0 {
				activateSleep(e.cfg.ActivateRetryDelay)
			}
			attempts++
			if lastErr = e.host.OpenDocument(ctx, tab.Metadata.URI, opts); lastErr == nil {
				strategy = schema.ActivateReopen
				break
			}
			log.Debug("action reopen failed", "attempt", attempts, "err", lastErr)
		}
	}
	if strategy == "" {
		if lastErr == nil {
			lastErr = schema.ErrNoLocator
		}
		log.Warn("action activate failed", "attempts", attempts, "err", lastErr)
		return schema.ActivateTabResponse{}, fmt.Errorf("%w: %w", schema.ErrActivateFailed, lastErr)
	}

	at := now()
	for _, member := range e.store.GetTabsInGroup(group) {
		want := member.ID() == tab.ID()
		if !want && !member.State.IsActive {
			continue
		}
		_ = e.store.UpdateTabSilent(member.ID(), func(t *schema.Tab) {
			t.State.IsActive = want
			if want {
				t.State.LastAccess = at
			}
		})
	}
	e.store.SetGroupActive(group)
	if doc, ok := e.docs.FindDocumentByURI(tab.Metadata.URI); ok {
		_ = e.docs.Touch(doc.ID)
	}
	if tab.IsDiff() {
		e.mirrorActiveVersion(ctx, tab.ID(), true)
	}
	updated, _ := e.store.GetTab(tab.ID())
	log.Debug("action activated", "strategy", strategy, "attempts", attempts)
	return schema.ActivateTabResponse{Tab: updated, Strategy: strategy, Attempts: attempts}, nil
}

// DuplicateTab opens the tab's resource in another group. A zero target
// group opens it beside the origin group.
func (e *Engine) DuplicateTab(ctx context.Context, req schema.DuplicateTabRequest) (schema.DuplicateTabResponse, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.DuplicateTabResponse{}, err
	}
	if tab.Metadata.URI == "" {
		return schema.DuplicateTabResponse{}, schema.ErrNoLocator
	}
	if !tab.State.Capabilities.CanDuplicate {
		return schema.DuplicateTabResponse{}, fmt.Errorf("duplicate tab: %w", schema.ErrInvalidRequest)
	}
	target := req.TargetGroup
	if target == 0 {
		target = tab.State.GroupID + 1
	}
	if target == tab.State.GroupID {
		return schema.DuplicateTabResponse{}, schema.ErrSameGroup
	}
	id, err := e.openInGroupLocked(ctx, tab.Metadata.URI, schema.OpenOptions{Group: target, Index: -1})
	if err != nil {
		return schema.DuplicateTabResponse{}, fmt.Errorf("duplicate tab: %w", err)
	}
	e.syncActiveStateLocked(ctx)
	logx.WithTab(ctx, tab.ID()).Info("action duplicated", "tab_new", id, "group", int(target))
	return schema.DuplicateTabResponse{TabID: id}, nil
}

// openInGroupLocked opens uri in the host and ingests the resulting native.
func (e *Engine) openInGroupLocked(ctx context.Context, uri string, opts schema.OpenOptions) (schema.TabID, error) {
	if err := e.host.OpenDocument(ctx, uri, opts); err != nil {
		return "", err
	}
	if _, ok := e.store.GetGroup(opts.Group); !ok {
		for _, g := range e.host.NativeGroups(ctx) {
			if g.Column == opts.Group {
				e.store.AddGroup(g.Column, g.IsActive)
			}
		}
	}
	native, ok := findResourceNative(e.host.NativeTabs(ctx), opts.Group, classify.NormalizeLocator(uri))
	if !ok {
		return "", fmt.Errorf("opened %s not found in group %d: %w", uri, opts.Group, schema.ErrTabNotFound)
	}
	id, ok := e.openTabLocked(ctx, native)
	if !ok {
		return "", fmt.Errorf("opened %s: %w", uri, schema.ErrInvalidRequest)
	}
	return id, nil
}

// MoveTab relocates tab into group at index (-1 appends) by closing it in
// the host and reopening its resource in the destination. Per-tab choices
// follow the tab to its new id.
func (e *Engine) MoveTab(ctx context.Context, tab schema.Tab, group schema.GroupID, index int) (schema.TabID, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if tab.Metadata.URI == "" {
		return "", schema.ErrNoLocator
	}
	log := logx.WithTab(ctx, tab.ID())
	if native, _, ok := e.findNativeLocked(ctx, tab.ID()); ok {
		if err := e.host.CloseNativeTabs(ctx, []schema.NativeTab{native}); err != nil {
			return "", fmt.Errorf("close origin: %w", err)
		}
	}
	id, err := e.openInGroupLocked(ctx, tab.Metadata.URI, schema.OpenOptions{Group: group, Index: index})
	if err != nil {
		log.Warn("action move reopen failed", "group", int(group), "err", err)
		e.sweepClosedLocked(ctx)
		return "", err
	}
	_ = e.store.UpdateTab(id, func(t *schema.Tab) {
		t.State.ViewMode = tab.State.ViewMode
		t.State.Integrations.InChatContext = tab.State.Integrations.InChatContext
		t.State.CustomActions = slices.Clone(tab.State.CustomActions)
		t.State.Shortcuts = slices.Clone(tab.State.Shortcuts)
	})
	e.sweepClosedLocked(ctx)
	e.syncActiveStateLocked(ctx)
	log.Info("action moved", "tab_new", id, "group", int(group), "index", index)
	return id, nil
}

// MoveToGroup moves a tab into another group, optionally next to a target.
func (e *Engine) MoveToGroup(ctx context.Context, req schema.MoveToGroupRequest) (schema.MoveToGroupResponse, error) {
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.MoveToGroupResponse{}, err
	}
	if !tab.State.Capabilities.CanMoveToGroup {
		return schema.MoveToGroupResponse{}, fmt.Errorf("move tab: %w", schema.ErrInvalidRequest)
	}
	id, err := e.drag.MoveBetweenGroups(ctx, req.TabID, req.TargetGroup, req.TargetTabID, req.Position)
	if err != nil {
		return schema.MoveToGroupResponse{}, err
	}
	return schema.MoveToGroupResponse{TabID: id}, nil
}

// DropTab applies a committed drag gesture.
func (e *Engine) DropTab(ctx context.Context, req schema.DropTabRequest) (schema.DropTabResponse, error) {
	id, err := e.drag.Drop(ctx, req)
	if err != nil {
		if !errors.Is(err, schema.ErrNoopMove) {
			pslog.Ctx(ctx).Debug("action drop rejected", "source", req.SourceID, "target", req.TargetID, "err", err)
		}
		return schema.DropTabResponse{}, err
	}
	return schema.DropTabResponse{TabID: id}, nil
}

// SetViewMode persists a tab's view mode. Children of a markdown parent
// follow the parent's choice.
func (e *Engine) SetViewMode(ctx context.Context, req schema.SetViewModeRequest) (schema.Tab, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.Tab{}, err
	}
	if req.Mode != schema.ViewModeSource && req.Mode != schema.ViewModePreview {
		return schema.Tab{}, fmt.Errorf("view mode %q: %w", req.Mode, schema.ErrInvalidRequest)
	}
	if err := e.store.UpdateTab(tab.ID(), func(t *schema.Tab) { t.State.ViewMode = req.Mode }); err != nil {
		return schema.Tab{}, err
	}
	updated, _ := e.store.GetTab(tab.ID())
	if mode, ok := hierarchy.InheritedViewMode(updated); ok {
		for _, child := range e.hier.GetChildren(tab.ID()) {
			_ = e.store.UpdateTab(child.ID(), func(t *schema.Tab) { t.State.ViewMode = mode })
		}
	}
	logx.WithTab(ctx, tab.ID()).Debug("action view mode set", "mode", req.Mode)
	return updated, nil
}

// SetChatContext toggles whether the tab is part of the chat context.
func (e *Engine) SetChatContext(ctx context.Context, req schema.SetChatContextRequest) (schema.Tab, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	tab, err := e.requireTab(req.TabID)
	if err != nil {
		return schema.Tab{}, err
	}
	if req.InChat && !tab.State.Capabilities.CanAddToChat {
		return schema.Tab{}, fmt.Errorf("add to chat: %w", schema.ErrInvalidRequest)
	}
	if err := e.store.UpdateTabState(tab.ID(), func(t *schema.Tab) { t.State.Integrations.InChatContext = req.InChat }); err != nil {
		return schema.Tab{}, err
	}
	updated, _ := e.store.GetTab(tab.ID())
	return updated, nil
}

// SyncCursor propagates a cursor position across the tab's family.
func (e *Engine) SyncCursor(ctx context.Context, req schema.SyncCursorRequest) (schema.SyncCursorResponse, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if _, err := e.requireTab(req.TabID); err != nil {
		return schema.SyncCursorResponse{}, err
	}
	updated, err := e.hier.SyncCursorPosition(ctx, req.TabID, req.Line, req.Column)
	if err != nil {
		return schema.SyncCursorResponse{}, err
	}
	return schema.SyncCursorResponse{Updated: updated}, nil
}

// ApplyDiffStats replaces the statistics of every diff tab whose base file is
// uri, in the document versions and on the tabs. It returns the number of
// tabs updated.
func (e *Engine) ApplyDiffStats(ctx context.Context, uri string, stats schema.DiffStats) (int, error) {
	if uri == "" {
		return 0, schema.ErrNoLocator
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	locator := classify.NormalizeLocator(uri)
	updated := 0
	for _, tab := range e.store.GetAllTabs() {
		md := tab.Metadata
		if !tab.IsDiff() || classify.ParentLocator(md.DiffType, md.URI, md.OriginalURI, md.ModifiedURI) != locator {
			continue
		}
		if v, ok := e.docs.FindVersionByRelatedTab(tab.ID()); ok {
			if err := e.docs.UpdateVersionStats(v.DocumentID, v.ID, stats); err != nil {
				logx.WithDocument(logx.WithTab(ctx, tab.ID()), v.DocumentID).Debug("action stats version vanished", "err", err)
			}
		}
		current := stats
		if err := e.store.UpdateTabState(tab.ID(), func(t *schema.Tab) { t.State.DiffStats = &current }); err == nil {
			updated++
		}
	}
	pslog.Ctx(ctx).Debug("action diff stats applied", "uri", locator, "tabs", updated, "added", stats.LinesAdded, "removed", stats.LinesRemoved)
	return updated, nil
}
