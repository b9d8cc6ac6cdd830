package schema

import "strconv"

// TabID identifies a tab entity in the store.
type TabID string

// GroupID identifies an editor group. It equals the group's display column.
type GroupID int

// FileTabID returns the id of the plain file tab showing uri in group.
func FileTabID(uri string, group GroupID) TabID {
	return TabID(uri + "-" + strconv.Itoa(int(group)))
}

// DocumentID identifies a document aggregate (normalised base locator).
type DocumentID string

// VersionID identifies a version inside a document.
type VersionID string

// TabKind is the coarse kind of a tab.
type TabKind string

const (
	// TabKindFile is a plain text editor backed by a resource.
	TabKindFile TabKind = "file"
	// TabKindDiff is a comparison between two resources.
	TabKindDiff TabKind = "diff"
	// TabKindWebview is a webview panel.
	TabKindWebview TabKind = "webview"
	// TabKindCustom is a custom editor backed by a resource.
	TabKindCustom TabKind = "custom"
	// TabKindNotebook is a notebook editor.
	TabKindNotebook TabKind = "notebook"
	// TabKindUnknown is anything else the host reports.
	TabKindUnknown TabKind = "unknown"
)

// DiffType is the semantic classification of a comparison tab.
type DiffType string

const (
	DiffWorkingTree     DiffType = "working-tree"
	DiffStaged          DiffType = "staged"
	DiffSnapshot        DiffType = "snapshot"
	DiffCommit          DiffType = "commit"
	DiffEdit            DiffType = "edit"
	DiffMergeConflict   DiffType = "merge-conflict"
	DiffIncoming        DiffType = "incoming"
	DiffCurrent         DiffType = "current"
	DiffIncomingCurrent DiffType = "incoming-current"
	DiffUnknown         DiffType = "unknown"
)

// AllDiffTypes lists every classification tag.
var AllDiffTypes = []DiffType{
	DiffWorkingTree,
	DiffStaged,
	DiffSnapshot,
	DiffCommit,
	DiffEdit,
	DiffMergeConflict,
	DiffIncoming,
	DiffCurrent,
	DiffIncomingCurrent,
	DiffUnknown,
}

// Valid reports whether d is one of the defined tags.
func (d DiffType) Valid() bool {
	for _, known := range AllDiffTypes {
		if d == known {
			return true
		}
	}
	return false
}

// ViewMode is the per-tab rendering preference.
type ViewMode string

const (
	ViewModeSource  ViewMode = "source"
	ViewModePreview ViewMode = "preview"
)

// GitStatus is the decoration supplied by the git-status provider.
type GitStatus string

const (
	GitStatusNone      GitStatus = ""
	GitStatusModified  GitStatus = "modified"
	GitStatusAdded     GitStatus = "added"
	GitStatusDeleted   GitStatus = "deleted"
	GitStatusUntracked GitStatus = "untracked"
	GitStatusIgnored   GitStatus = "ignored"
	GitStatusConflict  GitStatus = "conflict"
)

// DiagnosticSeverity is the worst diagnostic reported for a resource.
type DiagnosticSeverity string

const (
	DiagnosticNone    DiagnosticSeverity = ""
	DiagnosticError   DiagnosticSeverity = "error"
	DiagnosticWarning DiagnosticSeverity = "warning"
)

// FileCategory is a coarse file category derived from the extension.
type FileCategory string

const (
	CategoryCode     FileCategory = "code"
	CategoryMarkdown FileCategory = "markdown"
	CategoryConfig   FileCategory = "config"
	CategoryStyle    FileCategory = "style"
	CategoryData     FileCategory = "data"
	CategoryImage    FileCategory = "image"
	CategoryBinary   FileCategory = "binary"
	CategoryText     FileCategory = "text"
	CategoryOther    FileCategory = "other"
)
