// Package dragdrop reorders tabs within and across groups under pin
// constraints.
package dragdrop

import (
	"context"
	"fmt"
	"slices"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/tabstate"
	"pkt.systems/sidetabs/schema"
)

// Mover relocates a tab into another group. Implementations close the tab in
// its origin group and reopen it in the destination, so the returned id
// differs from the source id.
type Mover interface {
	MoveTab(ctx context.Context, tab schema.Tab, group schema.GroupID, index int) (schema.TabID, error)
}

// Service applies drag and drop requests to the store.
type Service struct {
	store *tabstate.Store
	mover Mover
	log   pslog.Logger
}

// New constructs a Service.
func New(store *tabstate.Store, mover Mover, logger pslog.Logger) *Service {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Service{store: store, mover: mover, log: logger}
}

func lastPinnedIndex(tabs []schema.Tab) int {
	last := -1
	for i, tab := range tabs {
		if tab.State.IsPinned {
			last = i
		}
	}
	return last
}

func indexOf(tabs []schema.Tab, id schema.TabID) int {
	return slices.IndexFunc(tabs, func(t schema.Tab) bool { return t.ID() == id })
}

func insertionPoint(targetIdx int, pos schema.DropPosition) int {
	if pos == schema.DropAfter {
		return targetIdx + 1
	}
	return targetIdx
}

// planReorder validates a same-group move and returns the new order.
func (s *Service) planReorder(sourceID, targetID schema.TabID, pos schema.DropPosition) (schema.GroupID, []schema.TabID, error) {
	source, ok := s.store.GetTab(sourceID)
	if !ok {
		return 0, nil, fmt.Errorf("reorder source: %w", schema.ErrTabNotFound)
	}
	target, ok := s.store.GetTab(targetID)
	if !ok {
		return 0, nil, fmt.Errorf("reorder target: %w", schema.ErrTabNotFound)
	}
	if source.State.IsPinned {
		return 0, nil, schema.ErrPinnedSource
	}
	if source.State.GroupID != target.State.GroupID {
		return 0, nil, schema.ErrInvalidRequest
	}
	if sourceID == targetID {
		return 0, nil, schema.ErrNoopMove
	}
	tabs := s.store.GetTabsInGroup(source.State.GroupID)
	srcIdx := indexOf(tabs, sourceID)
	tgtIdx := indexOf(tabs, targetID)
	if srcIdx < 0 || tgtIdx < 0 {
		return 0, nil, schema.ErrTabNotFound
	}
	insertAt := insertionPoint(tgtIdx, pos)
	if insertAt == srcIdx || insertAt == srcIdx+1 {
		return 0, nil, schema.ErrNoopMove
	}
	if insertAt <= lastPinnedIndex(tabs) {
		return 0, nil, schema.ErrPinnedBoundary
	}
	ids := make([]schema.TabID, 0, len(tabs))
	for _, tab := range tabs {
		ids = append(ids, tab.ID())
	}
	ids = slices.Delete(ids, srcIdx, srcIdx+1)
	if srcIdx < insertAt {
		insertAt--
	}
	ids = slices.Insert(ids, insertAt, sourceID)
	return source.State.GroupID, ids, nil
}

// ReorderWithinGroup moves sourceID before or after targetID in their group
// and renumbers every position. Pinned tabs stay a contiguous prefix.
func (s *Service) ReorderWithinGroup(sourceID, targetID schema.TabID, pos schema.DropPosition) error {
	groupID, ids, err := s.planReorder(sourceID, targetID, pos)
	if err != nil {
		s.log.Debug("dragdrop reorder rejected", "source", sourceID, "target", targetID, "position", pos, "err", err)
		return err
	}
	if err := s.store.SetGroupOrder(groupID, ids); err != nil {
		return err
	}
	s.log.Debug("dragdrop reordered", "source", sourceID, "target", targetID, "position", pos, "group", groupID)
	return nil
}

// MoveBetweenGroups moves sourceID into targetGroup, optionally next to
// targetID. It returns the id of the tab in its new group.
func (s *Service) MoveBetweenGroups(ctx context.Context, sourceID schema.TabID, targetGroup schema.GroupID, targetID schema.TabID, pos schema.DropPosition) (schema.TabID, error) {
	source, index, err := s.planMove(sourceID, targetGroup, targetID, pos)
	if err != nil {
		s.log.Debug("dragdrop move rejected", "source", sourceID, "group", targetGroup, "err", err)
		return "", err
	}
	if s.mover == nil {
		return "", fmt.Errorf("dragdrop: no mover configured")
	}
	newID, err := s.mover.MoveTab(ctx, source, targetGroup, index)
	if err != nil {
		return "", fmt.Errorf("move tab: %w", err)
	}
	pslog.Ctx(ctx).Debug("dragdrop moved", "source", sourceID, "tab", newID, "group", targetGroup, "index", index)
	return newID, nil
}

func (s *Service) planMove(sourceID schema.TabID, targetGroup schema.GroupID, targetID schema.TabID, pos schema.DropPosition) (schema.Tab, int, error) {
	source, ok := s.store.GetTab(sourceID)
	if !ok {
		return schema.Tab{}, 0, fmt.Errorf("move source: %w", schema.ErrTabNotFound)
	}
	if source.State.IsPinned {
		return schema.Tab{}, 0, schema.ErrPinnedSource
	}
	if targetGroup <= 0 {
		return schema.Tab{}, 0, schema.ErrInvalidRequest
	}
	if source.State.GroupID == targetGroup {
		return schema.Tab{}, 0, schema.ErrSameGroup
	}
	tabs := s.store.GetTabsInGroup(targetGroup)
	floor := lastPinnedIndex(tabs) + 1
	if targetID == "" {
		return source, -1, nil
	}
	target, ok := s.store.GetTab(targetID)
	if !ok {
		return schema.Tab{}, 0, fmt.Errorf("move target: %w", schema.ErrTabNotFound)
	}
	if target.State.GroupID != targetGroup {
		return schema.Tab{}, 0, schema.ErrInvalidRequest
	}
	if target.State.IsPinned {
		return schema.Tab{}, 0, schema.ErrPinnedTarget
	}
	index := insertionPoint(indexOf(tabs, targetID), pos)
	return source, max(index, floor), nil
}

// CanDrop reports whether dropping sourceID next to targetID would be
// accepted. It exposes the same predicate the move operations enforce.
func (s *Service) CanDrop(sourceID, targetID schema.TabID, pos schema.DropPosition) bool {
	source, ok := s.store.GetTab(sourceID)
	if !ok {
		return false
	}
	target, ok := s.store.GetTab(targetID)
	if !ok {
		return false
	}
	if source.State.GroupID == target.State.GroupID {
		_, _, err := s.planReorder(sourceID, targetID, pos)
		return err == nil
	}
	_, _, err := s.planMove(sourceID, target.State.GroupID, targetID, pos)
	return err == nil
}

// Drop routes a drop request to a reorder or a cross-group move.
func (s *Service) Drop(ctx context.Context, req schema.DropTabRequest) (schema.TabID, error) {
	source, ok := s.store.GetTab(req.SourceID)
	if !ok {
		return "", fmt.Errorf("drop source: %w", schema.ErrTabNotFound)
	}
	group := req.TargetGroup
	if req.TargetID != "" {
		target, ok := s.store.GetTab(req.TargetID)
		if !ok {
			return "", fmt.Errorf("drop target: %w", schema.ErrTabNotFound)
		}
		group = target.State.GroupID
	}
	if group == 0 || group == source.State.GroupID {
		if req.TargetID == "" {
			return "", schema.ErrInvalidRequest
		}
		return req.SourceID, s.ReorderWithinGroup(req.SourceID, req.TargetID, req.Position)
	}
	return s.MoveBetweenGroups(ctx, req.SourceID, group, req.TargetID, req.Position)
}
