// Package convert turns native host tabs into store entities.
package convert

import (
	"strings"

	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/schema"
)

// GitStatusProvider reports the git status of a resource.
type GitStatusProvider interface {
	GitStatus(uri string) schema.GitStatus
}

var previewViewTypes = []string{"markdown.preview", "vscode.markdown.preview.editor", "mainThreadWebview-markdown.preview"}

const previewLabelPrefix = "Preview "

// ConvertToSideTab converts one native tab. It reports ok=false for tabs that
// carry no actionable information (terminals, unlabeled unknowns, rendered
// preview surfaces). index is the tab's position in its group, or -1.
func ConvertToSideTab(native schema.NativeTab, git GitStatusProvider, index int) (schema.Tab, bool) {
	md := schema.TabMetadata{Label: native.Label}
	switch in := native.Input.(type) {
	case schema.FileInput:
		if in.URI == "" {
			return schema.Tab{}, false
		}
		md.Kind = schema.TabKindFile
		md.URI = in.URI
		md.ID = GenerateID(native.Label, in.URI, native.Group, md.Kind)
	case schema.DiffInput:
		md.Kind = schema.TabKindDiff
		md.OriginalURI = in.Original
		md.ModifiedURI = in.Modified
		md.URI = in.Modified
		if md.URI == "" {
			md.URI = in.Original
		}
		md.DiffType = classify.ClassifyDiffType(native.Label, in.Original, in.Modified)
		md.ParentID = classify.DetermineParentID(md.DiffType, md.URI, native.Group, in.Original, in.Modified)
		md.Description = diffDescription(md.DiffType)
		md.ID = generateDiffID()
	case schema.WebviewInput:
		if IsPreviewSurface(native) {
			return schema.Tab{}, false
		}
		md.Kind = schema.TabKindWebview
		md.ViewType = in.ViewType
		md.ID = GenerateID(native.Label, "", native.Group, md.Kind)
	case schema.CustomInput:
		md.Kind = schema.TabKindCustom
		md.URI = in.URI
		md.ViewType = in.ViewType
		md.ID = GenerateID(native.Label, in.URI, native.Group, md.Kind)
	case schema.NotebookInput:
		md.Kind = schema.TabKindNotebook
		md.URI = in.URI
		md.ViewType = in.NotebookType
		md.ID = GenerateID(native.Label, in.URI, native.Group, md.Kind)
	case schema.UnknownInput:
		if strings.TrimSpace(native.Label) == "" {
			return schema.Tab{}, false
		}
		md.Kind = schema.TabKindUnknown
		md.ID = GenerateID(native.Label, "", native.Group, md.Kind)
	default:
		return schema.Tab{}, false
	}
	md = Enrich(md)
	if md.Description == "" && md.Directory != "" && md.Directory != "." {
		md.Description = md.Directory
	}

	st := schema.TabState{
		IsActive:    native.IsActive,
		IsDirty:     native.IsDirty,
		IsPinned:    native.IsPinned,
		IsPreview:   native.IsPreview,
		GroupID:     native.Group,
		Index:       index,
		ViewMode:    schema.ViewModeSource,
		LastAccess:  now(),
		SyncVersion: nextSyncVersion(),
		Permissions: ComputePermissions(md),
	}
	if md.Kind == schema.TabKindDiff && md.DiffType == schema.DiffEdit {
		if added, removed, ok := classify.ParseEditCounts(native.Label); ok {
			st.DiffStats = &schema.DiffStats{LinesAdded: added, LinesRemoved: removed}
		}
	}
	if git != nil && md.URI != "" && md.Kind != schema.TabKindDiff {
		st.GitStatus = git.GitStatus(md.URI)
	}
	st.Capabilities = ComputeCapabilities(md, st)
	return schema.Tab{Metadata: md, State: st}, true
}

// IsPreviewSurface reports whether the native tab is a rendered preview that
// stands in for a source file tab.
func IsPreviewSurface(native schema.NativeTab) bool {
	in, ok := native.Input.(schema.WebviewInput)
	if !ok {
		return false
	}
	for _, vt := range previewViewTypes {
		if strings.EqualFold(in.ViewType, vt) {
			return true
		}
	}
	return strings.HasPrefix(native.Label, previewLabelPrefix)
}

// PreviewSourceName returns the file name a preview surface renders.
func PreviewSourceName(native schema.NativeTab) (string, bool) {
	if !IsPreviewSurface(native) {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(native.Label, previewLabelPrefix))
	if name == "" {
		return "", false
	}
	return name, true
}

func diffDescription(dt schema.DiffType) string {
	switch dt {
	case schema.DiffWorkingTree:
		return "Working Tree"
	case schema.DiffStaged:
		return "Staged"
	case schema.DiffSnapshot:
		return "Snapshot"
	case schema.DiffCommit:
		return "Commit"
	case schema.DiffEdit:
		return "Edit"
	case schema.DiffMergeConflict:
		return "Merge Conflict"
	case schema.DiffIncoming:
		return "Incoming"
	case schema.DiffCurrent:
		return "Current"
	case schema.DiffIncomingCurrent:
		return "Incoming ↔ Current"
	default:
		return "Comparison"
	}
}
