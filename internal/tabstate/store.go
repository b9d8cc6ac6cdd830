// Package tabstate holds the in-memory source of truth for tabs and groups.
package tabstate

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/eventbus"
	"pkt.systems/sidetabs/schema"
)

// Store maps tab ids to tabs and group ids to groups. Every read returns a
// copy; every mutation publishes on exactly one change channel.
type Store struct {
	mu     sync.RWMutex
	tabs   map[schema.TabID]*schema.Tab
	groups map[schema.GroupID]*schema.Group
	bus    *eventbus.Bus
	log    pslog.Logger
}

// New constructs an empty store publishing on bus.
func New(bus *eventbus.Bus, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if bus == nil {
		bus = eventbus.New(logger)
	}
	return &Store{
		tabs:   make(map[schema.TabID]*schema.Tab),
		groups: make(map[schema.GroupID]*schema.Group),
		bus:    bus,
		log:    logger,
	}
}

// Subscribe registers a consumer on one change channel.
func (s *Store) Subscribe(channel schema.ChangeChannel) (<-chan schema.ChangeEvent, func()) {
	return s.bus.Subscribe(channel)
}

// GetTab returns a copy of the tab.
func (s *Store) GetTab(id schema.TabID) (schema.Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab := s.tabs[id]
	if tab == nil {
		return schema.Tab{}, false
	}
	return tab.Clone(), true
}

// HasTab reports whether the id is store-resident.
func (s *Store) HasTab(id schema.TabID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tabs[id]
	return ok
}

// GetAllTabs returns every tab ordered by group and position.
func (s *Store) GetAllTabs() []schema.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Tab, 0, len(s.tabs))
	for _, tab := range s.tabs {
		out = append(out, tab.Clone())
	}
	slices.SortFunc(out, func(a, b schema.Tab) int {
		if c := cmp.Compare(a.State.GroupID, b.State.GroupID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.State.Index, b.State.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.Metadata.ID, b.Metadata.ID)
	})
	return out
}

// GetTabsInGroup returns the group's tabs in display order.
func (s *Store) GetTabsInGroup(groupID schema.GroupID) []schema.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group := s.groups[groupID]
	if group == nil {
		return nil
	}
	out := make([]schema.Tab, 0, len(group.TabIDs))
	for _, id := range group.TabIDs {
		if tab := s.tabs[id]; tab != nil {
			out = append(out, tab.Clone())
		}
	}
	return out
}

// GetGroup returns a copy of the group.
func (s *Store) GetGroup(id schema.GroupID) (schema.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group := s.groups[id]
	if group == nil {
		return schema.Group{}, false
	}
	return group.Clone(), true
}

// GetAllGroups returns every group ordered by column.
func (s *Store) GetAllGroups() []schema.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Group, 0, len(s.groups))
	for _, group := range s.groups {
		out = append(out, group.Clone())
	}
	slices.SortFunc(out, func(a, b schema.Group) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// FindTabByURI returns the first tab showing uri. A zero group searches all
// groups. Diff tabs are skipped so the result is always the file-like tab.
func (s *Store) FindTabByURI(uri string, group schema.GroupID) (schema.Tab, bool) {
	if uri == "" {
		return schema.Tab{}, false
	}
	for _, tab := range s.GetAllTabs() {
		if tab.IsDiff() || tab.Metadata.URI != uri {
			continue
		}
		if group != 0 && tab.State.GroupID != group {
			continue
		}
		return tab, true
	}
	return schema.Tab{}, false
}

// AddTab inserts or replaces a tab. New tabs are placed at State.Index when
// it is a valid position in the group, otherwise appended.
func (s *Store) AddTab(tab schema.Tab) {
	tab = tab.Clone()
	convert.Refresh(&tab)
	id := tab.Metadata.ID
	s.mu.Lock()
	prev := s.tabs[id]
	groupAdded := false
	if prev != nil && prev.State.GroupID != tab.State.GroupID {
		s.detachLocked(id, prev.State.GroupID)
	}
	group := s.groups[tab.State.GroupID]
	if group == nil {
		group = &schema.Group{ID: tab.State.GroupID}
		s.groups[group.ID] = group
		groupAdded = true
	}
	if !slices.Contains(group.TabIDs, id) {
		idx := tab.State.Index
		if idx >= 0 && idx < len(group.TabIDs) {
			group.TabIDs = slices.Insert(group.TabIDs, idx, id)
		} else {
			group.TabIDs = append(group.TabIDs, id)
		}
	}
	if prev != nil {
		tab.State.SyncVersion = max(tab.State.SyncVersion, prev.State.SyncVersion+1)
	}
	s.tabs[id] = &tab
	s.renumberLocked(group)
	s.mu.Unlock()

	if groupAdded {
		s.bus.Structural(schema.ChangeGroupAdded, "", tab.State.GroupID)
	}
	kind := schema.ChangeTabAdded
	if prev != nil {
		kind = schema.ChangeTabUpdated
	}
	s.log.Trace("store tab added", "tab", id, "group", tab.State.GroupID, "replaced", prev != nil)
	s.bus.Structural(kind, id, tab.State.GroupID)
}

// RemoveTab deletes a tab. It reports whether the tab existed.
func (s *Store) RemoveTab(id schema.TabID) bool {
	s.mu.Lock()
	tab := s.tabs[id]
	if tab == nil {
		s.mu.Unlock()
		return false
	}
	delete(s.tabs, id)
	groupID := tab.State.GroupID
	s.detachLocked(id, groupID)
	s.mu.Unlock()
	s.log.Trace("store tab removed", "tab", id, "group", groupID)
	s.bus.Structural(schema.ChangeTabRemoved, id, groupID)
	return true
}

// UpdateTab mutates a tab and publishes a structural change.
func (s *Store) UpdateTab(id schema.TabID, fn func(*schema.Tab)) error {
	groupID, err := s.mutate(id, fn)
	if err != nil {
		return err
	}
	s.bus.Structural(schema.ChangeTabUpdated, id, groupID)
	return nil
}

// UpdateTabSilent mutates a tab and publishes on the silent channel. Callers
// must only touch active/preview flags.
func (s *Store) UpdateTabSilent(id schema.TabID, fn func(*schema.Tab)) error {
	groupID, err := s.mutate(id, fn)
	if err != nil {
		return err
	}
	s.bus.Silent(id, groupID)
	return nil
}

// UpdateTabState mutates decoration-only fields and publishes a per-tab event.
func (s *Store) UpdateTabState(id schema.TabID, fn func(*schema.Tab)) error {
	groupID, err := s.mutate(id, fn)
	if err != nil {
		return err
	}
	s.bus.TabState(id, groupID)
	return nil
}

func (s *Store) mutate(id schema.TabID, fn func(*schema.Tab)) (schema.GroupID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.tabs[id]
	if tab == nil {
		return 0, schema.ErrTabNotFound
	}
	next := tab.Clone()
	fn(&next)
	// Identity and placement are owned by the store.
	next.Metadata.ID = id
	next.State.GroupID = tab.State.GroupID
	next.State.Index = tab.State.Index
	next.State.SyncVersion = tab.State.SyncVersion + 1
	convert.Refresh(&next)
	s.tabs[id] = &next
	return tab.State.GroupID, nil
}

// AddGroup creates a group if it does not exist.
func (s *Store) AddGroup(id schema.GroupID, active bool) {
	s.mu.Lock()
	if group := s.groups[id]; group != nil {
		changed := group.IsActive != active
		group.IsActive = active
		s.mu.Unlock()
		if changed {
			s.bus.Silent("", id)
		}
		return
	}
	s.groups[id] = &schema.Group{ID: id, IsActive: active}
	s.mu.Unlock()
	s.bus.Structural(schema.ChangeGroupAdded, "", id)
}

// RemoveGroup deletes a group and every tab in it, returning the removed tab ids.
func (s *Store) RemoveGroup(id schema.GroupID) []schema.TabID {
	s.mu.Lock()
	group := s.groups[id]
	if group == nil {
		s.mu.Unlock()
		return nil
	}
	removed := slices.Clone(group.TabIDs)
	for _, tabID := range removed {
		delete(s.tabs, tabID)
	}
	delete(s.groups, id)
	s.mu.Unlock()
	s.log.Debug("store group removed", "group", id, "tabs", len(removed))
	s.bus.Structural(schema.ChangeGroupRemoved, "", id)
	return removed
}

// SetGroupActive marks one group active and every other group inactive.
func (s *Store) SetGroupActive(id schema.GroupID) {
	s.mu.Lock()
	var changed []schema.GroupID
	for gid, group := range s.groups {
		want := gid == id
		if group.IsActive != want {
			group.IsActive = want
			changed = append(changed, gid)
		}
	}
	s.mu.Unlock()
	for _, gid := range changed {
		s.bus.Silent("", gid)
	}
}

// SetGroupOrder replaces the display order of a group. ids must be a
// permutation of the group's current members.
func (s *Store) SetGroupOrder(groupID schema.GroupID, ids []schema.TabID) error {
	s.mu.Lock()
	group := s.groups[groupID]
	if group == nil {
		s.mu.Unlock()
		return schema.ErrGroupNotFound
	}
	if len(ids) != len(group.TabIDs) {
		s.mu.Unlock()
		return schema.ErrInvalidRequest
	}
	for _, id := range ids {
		if !slices.Contains(group.TabIDs, id) {
			s.mu.Unlock()
			return schema.ErrInvalidRequest
		}
	}
	group.TabIDs = slices.Clone(ids)
	s.renumberLocked(group)
	s.mu.Unlock()
	s.bus.Structural(schema.ChangeGroupUpdated, "", groupID)
	return nil
}

// ReplaceAll swaps the whole store content and publishes exactly one
// structural event.
func (s *Store) ReplaceAll(tabs []schema.Tab, groups []schema.Group) {
	s.mu.Lock()
	s.tabs = make(map[schema.TabID]*schema.Tab, len(tabs))
	s.groups = make(map[schema.GroupID]*schema.Group, len(groups))
	for _, g := range groups {
		s.groups[g.ID] = &schema.Group{ID: g.ID, IsActive: g.IsActive}
	}
	for _, tab := range tabs {
		tab = tab.Clone()
		convert.Refresh(&tab)
		group := s.groups[tab.State.GroupID]
		if group == nil {
			group = &schema.Group{ID: tab.State.GroupID}
			s.groups[group.ID] = group
		}
		if _, dup := s.tabs[tab.Metadata.ID]; !dup {
			group.TabIDs = append(group.TabIDs, tab.Metadata.ID)
		}
		s.tabs[tab.Metadata.ID] = &tab
	}
	for _, group := range s.groups {
		slices.SortStableFunc(group.TabIDs, func(a, b schema.TabID) int {
			return cmp.Compare(s.tabs[a].State.Index, s.tabs[b].State.Index)
		})
		s.renumberLocked(group)
	}
	count := len(s.tabs)
	s.mu.Unlock()
	s.log.Debug("store replaced", "tabs", count, "groups", len(groups))
	s.bus.Structural(schema.ChangeReplaced, "", 0)
}

func (s *Store) detachLocked(id schema.TabID, groupID schema.GroupID) {
	group := s.groups[groupID]
	if group == nil {
		return
	}
	if idx := slices.Index(group.TabIDs, id); idx >= 0 {
		group.TabIDs = slices.Delete(group.TabIDs, idx, idx+1)
	}
	s.renumberLocked(group)
}

func (s *Store) renumberLocked(group *schema.Group) {
	for i, id := range group.TabIDs {
		if tab := s.tabs[id]; tab != nil {
			tab.State.Index = i
		}
	}
}
