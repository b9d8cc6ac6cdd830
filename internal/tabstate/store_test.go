package tabstate

import (
	"errors"
	"testing"
	"time"

	"pkt.systems/sidetabs/schema"
)

func fileTab(uri string, group schema.GroupID, index int) schema.Tab {
	return schema.Tab{
		Metadata: schema.TabMetadata{ID: schema.FileTabID(uri, group), URI: uri, Label: uri, Kind: schema.TabKindFile, Scheme: "file"},
		State:    schema.TabState{GroupID: group, Index: index},
	}
}

func recv(t *testing.T, ch <-chan schema.ChangeEvent) schema.ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change event")
	}
	return schema.ChangeEvent{}
}

func expectNone(t *testing.T, ch <-chan schema.ChangeEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestAddTabCreatesGroupAndOrders(t *testing.T) {
	s := New(nil, nil)
	s.AddTab(fileTab("file:///a", 1, 0))
	s.AddTab(fileTab("file:///b", 1, 1))
	s.AddTab(fileTab("file:///c", 1, 0))

	tabs := s.GetTabsInGroup(1)
	if len(tabs) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(tabs))
	}
	if tabs[0].Metadata.URI != "file:///c" || tabs[1].Metadata.URI != "file:///a" || tabs[2].Metadata.URI != "file:///b" {
		t.Fatalf("unexpected order: %v %v %v", tabs[0].ID(), tabs[1].ID(), tabs[2].ID())
	}
	for i, tab := range tabs {
		if tab.State.Index != i {
			t.Fatalf("tab %s expected index %d, got %d", tab.ID(), i, tab.State.Index)
		}
	}
	if _, ok := s.GetGroup(1); !ok {
		t.Fatalf("expected group 1 to be created")
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := New(nil, nil)
	tab := fileTab("file:///a", 1, 0)
	s.AddTab(tab)
	got, _ := s.GetTab(tab.ID())
	got.State.IsPinned = true
	got.State.CustomActions = append(got.State.CustomActions, schema.CustomAction{ID: "x"})
	again, _ := s.GetTab(tab.ID())
	if again.State.IsPinned || len(again.State.CustomActions) != 0 {
		t.Fatalf("store was mutated through a returned copy")
	}
}

func TestChannelsAreExclusive(t *testing.T) {
	s := New(nil, nil)
	structural, cancelS := s.Subscribe(schema.ChannelStructural)
	defer cancelS()
	silent, cancelQ := s.Subscribe(schema.ChannelSilent)
	defer cancelQ()
	state, cancelT := s.Subscribe(schema.ChannelTabState)
	defer cancelT()

	tab := fileTab("file:///a", 1, 0)
	s.AddTab(tab)
	if ev := recv(t, structural); ev.Kind != schema.ChangeGroupAdded {
		t.Fatalf("expected group-added first, got %+v", ev)
	}
	if ev := recv(t, structural); ev.Kind != schema.ChangeTabAdded || ev.TabID != tab.ID() {
		t.Fatalf("expected tab-added, got %+v", ev)
	}

	if err := s.UpdateTabSilent(tab.ID(), func(tab *schema.Tab) { tab.State.IsActive = true }); err != nil {
		t.Fatalf("silent update: %v", err)
	}
	if ev := recv(t, silent); ev.TabID != tab.ID() {
		t.Fatalf("unexpected silent event %+v", ev)
	}
	expectNone(t, structural)

	if err := s.UpdateTabState(tab.ID(), func(tab *schema.Tab) { tab.State.GitStatus = schema.GitStatusModified }); err != nil {
		t.Fatalf("state update: %v", err)
	}
	recv(t, state)
	expectNone(t, structural)
	expectNone(t, silent)

	if err := s.UpdateTab(tab.ID(), func(tab *schema.Tab) { tab.State.IsPinned = true }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ev := recv(t, structural); ev.Kind != schema.ChangeTabUpdated {
		t.Fatalf("expected tab-updated, got %+v", ev)
	}
	expectNone(t, silent)
	expectNone(t, state)
}

func TestUpdateRecomputesCapabilitiesAndBumpsVersion(t *testing.T) {
	s := New(nil, nil)
	tab := fileTab("file:///a.go", 1, 0)
	s.AddTab(tab)
	before, _ := s.GetTab(tab.ID())
	if !before.State.Capabilities.CanPin {
		t.Fatalf("expected unpinned tab to be pinnable")
	}
	_ = s.UpdateTab(tab.ID(), func(next *schema.Tab) {
		next.State.IsPinned = true
		next.State.Capabilities.CanPin = true
	})
	after, _ := s.GetTab(tab.ID())
	if after.State.Capabilities.CanPin || !after.State.Capabilities.CanUnpin {
		t.Fatalf("capabilities not recomputed: %+v", after.State.Capabilities)
	}
	if after.State.SyncVersion <= before.State.SyncVersion {
		t.Fatalf("expected sync version to grow: %d -> %d", before.State.SyncVersion, after.State.SyncVersion)
	}
}

func TestUpdateMissingTab(t *testing.T) {
	s := New(nil, nil)
	err := s.UpdateTab("nope", func(*schema.Tab) {})
	if !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestReplaceAllPublishesOnce(t *testing.T) {
	s := New(nil, nil)
	s.AddTab(fileTab("file:///old", 1, 0))
	ch, cancel := s.Subscribe(schema.ChannelStructural)
	defer cancel()

	s.ReplaceAll([]schema.Tab{
		fileTab("file:///b", 2, 1),
		fileTab("file:///a", 2, 0),
		fileTab("file:///c", 1, 0),
	}, []schema.Group{{ID: 1}, {ID: 2, IsActive: true}})

	if ev := recv(t, ch); ev.Kind != schema.ChangeReplaced {
		t.Fatalf("expected replaced event, got %+v", ev)
	}
	expectNone(t, ch)
	if s.HasTab(schema.FileTabID("file:///old", 1)) {
		t.Fatalf("expected old tab to be gone")
	}
	tabs := s.GetTabsInGroup(2)
	if len(tabs) != 2 || tabs[0].Metadata.URI != "file:///a" {
		t.Fatalf("expected group 2 ordered by index, got %+v", tabs)
	}
	if g, _ := s.GetGroup(2); !g.IsActive {
		t.Fatalf("expected group 2 active")
	}
}

func TestRemoveTabRenumbers(t *testing.T) {
	s := New(nil, nil)
	a, b, c := fileTab("file:///a", 1, 0), fileTab("file:///b", 1, 1), fileTab("file:///c", 1, 2)
	s.AddTab(a)
	s.AddTab(b)
	s.AddTab(c)
	if !s.RemoveTab(b.ID()) {
		t.Fatalf("expected removal")
	}
	if s.RemoveTab(b.ID()) {
		t.Fatalf("second removal must report false")
	}
	got, _ := s.GetTab(c.ID())
	if got.State.Index != 1 {
		t.Fatalf("expected c at index 1, got %d", got.State.Index)
	}
}

func TestSetGroupOrder(t *testing.T) {
	s := New(nil, nil)
	a, b := fileTab("file:///a", 1, 0), fileTab("file:///b", 1, 1)
	s.AddTab(a)
	s.AddTab(b)
	if err := s.SetGroupOrder(1, []schema.TabID{b.ID(), a.ID()}); err != nil {
		t.Fatalf("set order: %v", err)
	}
	tabs := s.GetTabsInGroup(1)
	if tabs[0].ID() != b.ID() || tabs[0].State.Index != 0 || tabs[1].State.Index != 1 {
		t.Fatalf("unexpected order %+v", tabs)
	}
	if err := s.SetGroupOrder(1, []schema.TabID{a.ID()}); !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if err := s.SetGroupOrder(9, nil); !errors.Is(err, schema.ErrGroupNotFound) {
		t.Fatalf("expected group not found, got %v", err)
	}
}

func TestFindTabByURISkipsDiffs(t *testing.T) {
	s := New(nil, nil)
	diff := schema.Tab{
		Metadata: schema.TabMetadata{ID: "diff-1", URI: "file:///a", Kind: schema.TabKindDiff},
		State:    schema.TabState{GroupID: 1},
	}
	s.AddTab(diff)
	if _, ok := s.FindTabByURI("file:///a", 0); ok {
		t.Fatalf("diff tabs must not match")
	}
	s.AddTab(fileTab("file:///a", 2, 0))
	got, ok := s.FindTabByURI("file:///a", 0)
	if !ok || got.State.GroupID != 2 {
		t.Fatalf("expected file tab in group 2, got %+v", got)
	}
	if _, ok := s.FindTabByURI("file:///a", 1); ok {
		t.Fatalf("group filter ignored")
	}
}

func TestRemoveGroupDropsTabs(t *testing.T) {
	s := New(nil, nil)
	s.AddTab(fileTab("file:///a", 1, 0))
	s.AddTab(fileTab("file:///b", 2, 0))
	removed := s.RemoveGroup(2)
	if len(removed) != 1 || s.HasTab(schema.FileTabID("file:///b", 2)) {
		t.Fatalf("expected group 2 tabs removed, got %v", removed)
	}
	if len(s.GetAllGroups()) != 1 {
		t.Fatalf("expected one group left")
	}
}

func TestSetGroupActiveIsExclusive(t *testing.T) {
	s := New(nil, nil)
	s.AddGroup(1, true)
	s.AddGroup(2, false)
	s.SetGroupActive(2)
	for _, g := range s.GetAllGroups() {
		if g.IsActive != (g.ID == 2) {
			t.Fatalf("group %d active=%v", g.ID, g.IsActive)
		}
	}
}
