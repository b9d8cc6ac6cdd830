package schema

// DropPosition places a dragged tab relative to its target.
type DropPosition string

const (
	DropBefore DropPosition = "before"
	DropAfter  DropPosition = "after"
)

// CloseScope selects which tabs a close request affects.
type CloseScope string

const (
	// CloseOne closes the tab itself.
	CloseOne CloseScope = "one"
	// CloseOthers closes every unpinned tab in the group except the tab's family.
	CloseOthers CloseScope = "others"
	// CloseToRight closes unpinned tabs positioned after the tab.
	CloseToRight CloseScope = "right"
	// CloseGroup closes every tab in the group.
	CloseGroup CloseScope = "group"
)

// ActivateStrategy records which activation strategy succeeded.
type ActivateStrategy string

const (
	ActivatePreview     ActivateStrategy = "preview"
	ActivateNativeIndex ActivateStrategy = "native-index"
	ActivateReopen      ActivateStrategy = "reopen"
)

// PinTabRequest pins or unpins a tab.
type PinTabRequest struct {
	TabID  TabID
	Pinned bool
}

// PinTabResponse returns the updated tab.
type PinTabResponse struct {
	Tab Tab
}

// CloseTabsRequest closes one or more tabs.
type CloseTabsRequest struct {
	TabID   TabID
	GroupID GroupID // used by CloseGroup when TabID is empty
	Scope   CloseScope
}

// CloseTabsResponse lists the removed tab ids.
type CloseTabsResponse struct {
	Closed []TabID
}

// ActivateTabRequest focuses a tab in the host.
type ActivateTabRequest struct {
	TabID TabID
}

// ActivateTabResponse reports how the tab was activated.
type ActivateTabResponse struct {
	Tab      Tab
	Strategy ActivateStrategy
	Attempts int
}

// DuplicateTabRequest opens the tab's resource again in another group.
type DuplicateTabRequest struct {
	TabID       TabID
	TargetGroup GroupID // zero opens beside the origin group
}

// DuplicateTabResponse returns the id of the duplicate.
type DuplicateTabResponse struct {
	TabID TabID
}

// MoveToGroupRequest moves a tab into another group.
type MoveToGroupRequest struct {
	TabID       TabID
	TargetGroup GroupID
	TargetTabID TabID
	Position    DropPosition
}

// MoveToGroupResponse returns the tab id in its new group.
type MoveToGroupResponse struct {
	TabID TabID
}

// DropTabRequest is the single request a committed drag gesture emits.
type DropTabRequest struct {
	SourceID    TabID
	TargetID    TabID
	TargetGroup GroupID
	Position    DropPosition
}

// DropTabResponse returns the final id of the dropped tab.
type DropTabResponse struct {
	TabID TabID
}

// SetViewModeRequest persists a tab's view mode preference.
type SetViewModeRequest struct {
	TabID TabID
	Mode  ViewMode
}

// SetChatContextRequest toggles chat-context membership.
type SetChatContextRequest struct {
	TabID  TabID
	InChat bool
}

// SyncCursorRequest propagates a cursor position across a tab family.
type SyncCursorRequest struct {
	TabID  TabID
	Line   int
	Column int
}

// SyncCursorResponse lists the family members that received the position.
type SyncCursorResponse struct {
	Updated []TabID
}
