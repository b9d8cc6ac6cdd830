// Package hierarchy maintains parent/child links between file tabs and the
// diff tabs that version them.
package hierarchy

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/documents"
	"pkt.systems/sidetabs/internal/tabstate"
	"pkt.systems/sidetabs/schema"
)

// EditorHost exposes the host's visible editors for cursor propagation.
type EditorHost interface {
	VisibleEditors(ctx context.Context) []schema.VisibleEditor
	SetEditorSelection(ctx context.Context, editor schema.VisibleEditor, line, column int, preserveFocus bool) error
}

// Service owns hierarchy bookkeeping on top of the entity store.
type Service struct {
	store   *tabstate.Store
	docs    *documents.Manager
	editors EditorHost
	log     pslog.Logger

	mu         sync.Mutex
	links      map[schema.TabID]schema.TabID // child -> parent
	cursorSync bool

	now func() time.Time
}

// New constructs a Service. docs and editors may be nil.
func New(store *tabstate.Store, docs *documents.Manager, editors EditorHost, cfg schema.EngineConfig, logger pslog.Logger) *Service {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Service{
		store:      store,
		docs:       docs,
		editors:    editors,
		log:        logger,
		links:      make(map[schema.TabID]schema.TabID),
		cursorSync: cfg.CursorSync,
		now:        time.Now,
	}
}

// SetCursorSync toggles cross-tab cursor propagation.
func (s *Service) SetCursorSync(enabled bool) {
	s.mu.Lock()
	s.cursorSync = enabled
	s.mu.Unlock()
}

// RegisterChild links child to parent and bumps the parent's counter.
// Registering an existing link is a no-op.
func (s *Service) RegisterChild(childID, parentID schema.TabID) error {
	if !s.store.HasTab(parentID) {
		return schema.ErrTabNotFound
	}
	if !s.store.HasTab(childID) {
		return schema.ErrTabNotFound
	}
	s.mu.Lock()
	prev, linked := s.links[childID]
	if linked && prev == parentID {
		s.mu.Unlock()
		return nil
	}
	s.links[childID] = parentID
	s.mu.Unlock()
	if linked {
		s.adjustCount(prev, -1)
	}
	if err := s.store.UpdateTab(childID, func(tab *schema.Tab) { tab.State.IsChild = true }); err != nil {
		return err
	}
	s.adjustCount(parentID, 1)
	s.log.Debug("hierarchy child registered", "child", childID, "parent", parentID)
	return nil
}

// UnregisterChild removes the link of childID, if any.
func (s *Service) UnregisterChild(childID schema.TabID) {
	s.mu.Lock()
	parentID, linked := s.links[childID]
	delete(s.links, childID)
	s.mu.Unlock()
	if !linked {
		return
	}
	if s.store.HasTab(childID) {
		_ = s.store.UpdateTab(childID, func(tab *schema.Tab) { tab.State.IsChild = false })
	}
	s.adjustCount(parentID, -1)
	s.log.Debug("hierarchy child unregistered", "child", childID, "parent", parentID)
}

// ParentOf returns the registered parent of childID.
func (s *Service) ParentOf(childID schema.TabID) (schema.TabID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.links[childID]
	return parent, ok
}

func (s *Service) adjustCount(parentID schema.TabID, delta int) {
	err := s.store.UpdateTab(parentID, func(tab *schema.Tab) {
		tab.State.ChildrenCount = max(0, tab.State.ChildrenCount+delta)
		tab.State.HasChildren = tab.State.ChildrenCount > 0
	})
	if err != nil {
		s.log.Trace("hierarchy parent gone", "parent", parentID)
	}
}

// RecalculateAllCounts rebuilds every counter and link from the store's
// parentId fields. Only tabs whose values drift are updated.
func (s *Service) RecalculateAllCounts() {
	tabs := s.store.GetAllTabs()
	resident := make(map[schema.TabID]struct{}, len(tabs))
	for _, tab := range tabs {
		resident[tab.ID()] = struct{}{}
	}
	counts := make(map[schema.TabID]int)
	links := make(map[schema.TabID]schema.TabID)
	for _, tab := range tabs {
		parentID := tab.Metadata.ParentID
		if parentID == "" || parentID == tab.ID() {
			continue
		}
		if _, ok := resident[parentID]; !ok {
			continue
		}
		counts[parentID]++
		links[tab.ID()] = parentID
	}
	s.mu.Lock()
	s.links = links
	s.mu.Unlock()

	fixed := 0
	for _, tab := range tabs {
		count := counts[tab.ID()]
		_, isChild := links[tab.ID()]
		st := tab.State
		if st.ChildrenCount == count && st.HasChildren == (count > 0) && st.IsChild == isChild {
			continue
		}
		fixed++
		_ = s.store.UpdateTab(tab.ID(), func(t *schema.Tab) {
			t.State.ChildrenCount = count
			t.State.HasChildren = count > 0
			t.State.IsChild = isChild
		})
	}
	s.log.Debug("hierarchy counts recalculated", "tabs", len(tabs), "links", len(links), "fixed", fixed)
}

// InheritState copies the parent's view mode to the child when the parent
// is a markdown file. Nothing else is inherited.
func (s *Service) InheritState(childID, parentID schema.TabID) error {
	parent, ok := s.store.GetTab(parentID)
	if !ok {
		return schema.ErrTabNotFound
	}
	mode, ok := InheritedViewMode(parent)
	if !ok {
		return nil
	}
	return s.store.UpdateTab(childID, func(tab *schema.Tab) { tab.State.ViewMode = mode })
}

// InheritedViewMode returns the view mode a child of parent takes over.
func InheritedViewMode(parent schema.Tab) (schema.ViewMode, bool) {
	if !convert.IsMarkdown(parent.Metadata) || parent.State.ViewMode == "" {
		return "", false
	}
	return parent.State.ViewMode, true
}

// CalculateDiffStats returns stats for a diff tab. Document-backed stats win;
// otherwise a type-specific placeholder is derived from the tab itself.
func (s *Service) CalculateDiffStats(tab schema.Tab) *schema.DiffStats {
	if !tab.IsDiff() {
		return nil
	}
	if s.docs != nil {
		if v, ok := s.docs.FindVersionByRelatedTab(tab.ID()); ok && v.Stats != nil {
			stats := *v.Stats
			return &stats
		}
	}
	switch tab.Metadata.DiffType {
	case schema.DiffEdit:
		if added, removed, ok := classify.ParseEditCounts(tab.Metadata.Label); ok {
			return &schema.DiffStats{LinesAdded: added, LinesRemoved: removed}
		}
	case schema.DiffSnapshot, schema.DiffCommit:
		at := tab.State.LastAccess
		if at.IsZero() {
			at = s.now()
		}
		return &schema.DiffStats{SnapshotTime: at, SnapshotName: tab.Metadata.Label}
	case schema.DiffMergeConflict:
		return &schema.DiffStats{ConflictSections: 1}
	}
	if tab.State.DiffStats != nil {
		stats := *tab.State.DiffStats
		return &stats
	}
	return nil
}

// GetChildren returns the store-resident tabs whose parent is parentID.
func (s *Service) GetChildren(parentID schema.TabID) []schema.Tab {
	var out []schema.Tab
	for _, tab := range s.store.GetAllTabs() {
		if tab.Metadata.ParentID == parentID && tab.ID() != parentID {
			out = append(out, tab)
		}
	}
	slices.SortFunc(out, func(a, b schema.Tab) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Family returns every tab related to tabID, excluding itself: the parent
// and siblings of a child, or the children of a parent.
func (s *Service) Family(tabID schema.TabID) ([]schema.Tab, error) {
	tab, ok := s.store.GetTab(tabID)
	if !ok {
		return nil, schema.ErrTabNotFound
	}
	parentID := tab.Metadata.ParentID
	if parentID == "" || !s.store.HasTab(parentID) {
		return s.GetChildren(tabID), nil
	}
	parent, _ := s.store.GetTab(parentID)
	out := []schema.Tab{parent}
	for _, sibling := range s.GetChildren(parentID) {
		if sibling.ID() != tabID {
			out = append(out, sibling)
		}
	}
	return out, nil
}

// SyncCursorPosition propagates a cursor position from tabID to its family.
// Visible editors of family members are repositioned without taking focus.
// It returns the ids of the tabs that received the position.
func (s *Service) SyncCursorPosition(ctx context.Context, tabID schema.TabID, line, column int) ([]schema.TabID, error) {
	s.mu.Lock()
	enabled := s.cursorSync
	s.mu.Unlock()
	if !enabled {
		return nil, nil
	}
	if line < 0 || column < 0 {
		return nil, schema.ErrInvalidRequest
	}
	family, err := s.Family(tabID)
	if err != nil {
		return nil, err
	}
	log := pslog.Ctx(ctx).With("tab", tabID, "line", line, "column", column)
	pos := schema.CursorPosition{Line: line, Column: column}
	setCursor := func(tab *schema.Tab) {
		p := pos
		tab.State.Cursor = &p
	}
	_ = s.store.UpdateTabState(tabID, setCursor)
	source, _ := s.store.GetTab(tabID)

	var visible []schema.VisibleEditor
	if s.editors != nil {
		visible = s.editors.VisibleEditors(ctx)
	}
	moved := make(map[schema.VisibleEditor]bool)
	for _, editor := range visible {
		if editorShows(editor, source) {
			moved[editor] = true
		}
	}
	updated := make([]schema.TabID, 0, len(family))
	for _, member := range family {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if err := s.store.UpdateTabState(member.ID(), setCursor); err != nil {
			continue
		}
		updated = append(updated, member.ID())
		for _, editor := range visible {
			if moved[editor] || !editorShows(editor, member) {
				continue
			}
			moved[editor] = true
			if err := s.editors.SetEditorSelection(ctx, editor, line, column, true); err != nil {
				log.Warn("hierarchy cursor sync failed", "target", member.ID(), "err", err)
			}
		}
	}
	log.Debug("hierarchy cursor synced", "targets", len(updated))
	return updated, nil
}

func editorShows(editor schema.VisibleEditor, tab schema.Tab) bool {
	if editor.Group != tab.State.GroupID {
		return false
	}
	uri := tab.Metadata.URI
	if tab.IsDiff() && tab.Metadata.ModifiedURI != "" {
		uri = tab.Metadata.ModifiedURI
	}
	return uri != "" && editor.URI == uri
}
