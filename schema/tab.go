package schema

import (
	"slices"
	"time"
)

// TabMetadata holds the immutable description of a tab.
type TabMetadata struct {
	ID          TabID
	URI         string // empty for non-resource tabs
	Label       string
	Description string
	Tooltip     string
	Kind        TabKind
	ViewType    string // webview/custom/notebook type

	FileName   string
	Extension  string
	Directory  string
	Scheme     string
	IsRemote   bool
	IsUntitled bool
	IsBinary   bool
	Category   FileCategory

	// Set only for comparison tabs.
	ParentID    TabID
	DiffType    DiffType
	OriginalURI string
	ModifiedURI string
}

// Operation describes a long-running action attached to a tab.
type Operation struct {
	Name        string
	Cancellable bool
	Progress    int
	Cancelled   bool
}

// Capabilities are computed from metadata and state; never set by hand.
type Capabilities struct {
	CanClose         bool
	CanPin           bool
	CanUnpin         bool
	CanReveal        bool
	CanSplit         bool
	CanRename        bool
	CanTogglePreview bool
	CanDuplicate     bool
	CanMoveToGroup   bool
	CanAddToChat     bool
	CanCompare       bool
	CanExpand        bool
}

// Permissions restrict user-facing actions.
type Permissions struct {
	CanRename         bool
	CanDelete         bool
	CanMove           bool
	CanShare          bool
	RestrictedActions []string
}

// Restricts reports whether action is in the restricted list.
func (p Permissions) Restricts(action string) bool {
	return slices.Contains(p.RestrictedActions, action)
}

// DiffStats is the optional statistics block of a comparison tab.
type DiffStats struct {
	LinesAdded       int
	LinesRemoved     int
	SnapshotTime     time.Time
	SnapshotName     string
	ConflictSections int
}

// GitSummary is the git part of the integration block.
type GitSummary struct {
	Branch string
	Status GitStatus
}

// Integrations groups state owned by external integrations.
type Integrations struct {
	InChatContext bool
	Git           *GitSummary
}

// CustomAction is an extension-contributed tab action.
type CustomAction struct {
	ID    string
	Label string
	Icon  string
}

// Shortcut binds an action id to a keybinding label.
type Shortcut struct {
	Action     string
	Keybinding string
}

// CursorPosition is a zero-based line/column pair.
type CursorPosition struct {
	Line   int
	Column int
}

// TabState holds the mutable part of a tab.
type TabState struct {
	IsActive  bool
	IsDirty   bool
	IsPinned  bool
	IsPreview bool
	GroupID   GroupID
	Index     int
	ViewMode  ViewMode

	Operation    *Operation
	Capabilities Capabilities
	Permissions  Permissions

	HasChildren   bool
	ChildrenCount int
	IsChild       bool

	LastAccess  time.Time
	SyncVersion uint64

	Diagnostic DiagnosticSeverity
	GitStatus  GitStatus
	DiffStats  *DiffStats
	Cursor     *CursorPosition

	Integrations  Integrations
	CustomActions []CustomAction
	Shortcuts     []Shortcut
}

// Tab is the unit of display.
type Tab struct {
	Metadata TabMetadata
	State    TabState
}

// ID returns the tab id.
func (t Tab) ID() TabID {
	return t.Metadata.ID
}

// IsDiff reports whether the tab is a comparison tab.
func (t Tab) IsDiff() bool {
	return t.Metadata.Kind == TabKindDiff
}

// Clone returns a deep copy so callers can mutate freely.
func (t Tab) Clone() Tab {
	out := t
	st := &out.State
	if st.Operation != nil {
		op := *st.Operation
		st.Operation = &op
	}
	if st.DiffStats != nil {
		stats := *st.DiffStats
		st.DiffStats = &stats
	}
	if st.Cursor != nil {
		cur := *st.Cursor
		st.Cursor = &cur
	}
	if st.Integrations.Git != nil {
		git := *st.Integrations.Git
		st.Integrations.Git = &git
	}
	st.Permissions.RestrictedActions = slices.Clone(st.Permissions.RestrictedActions)
	st.CustomActions = slices.Clone(st.CustomActions)
	st.Shortcuts = slices.Clone(st.Shortcuts)
	return out
}

// Group is an editor column.
type Group struct {
	ID       GroupID
	IsActive bool
	TabIDs   []TabID
}

// Clone returns a copy with its own tab list.
func (g Group) Clone() Group {
	g.TabIDs = slices.Clone(g.TabIDs)
	return g
}
