package convert

import "pkt.systems/sidetabs/schema"

// Action ids used in permission restriction lists.
const (
	ActionRename    = "rename"
	ActionDelete    = "delete"
	ActionDuplicate = "duplicate"
	ActionReveal    = "reveal"
	ActionAddToChat = "addToChat"
	ActionMove      = "move"
)

// ComputePermissions derives the permission set from metadata.
func ComputePermissions(md schema.TabMetadata) schema.Permissions {
	isDiff := md.Kind == schema.TabKindDiff
	isFile := md.Scheme == "file"
	perms := schema.Permissions{
		CanRename: !isDiff && isFile && !md.IsUntitled,
		CanDelete: !isDiff && isFile && !md.IsRemote,
		CanMove:   true,
		CanShare:  md.URI != "" && !md.IsUntitled,
	}
	var restricted []string
	if isDiff {
		restricted = append(restricted, ActionRename, ActionDelete, ActionDuplicate)
	}
	if md.IsRemote && !isDiff {
		restricted = append(restricted, ActionDelete)
	}
	if md.IsUntitled {
		restricted = append(restricted, ActionReveal)
	}
	if md.IsBinary {
		restricted = append(restricted, ActionAddToChat)
	}
	perms.RestrictedActions = restricted
	return perms
}

// ComputeCapabilities derives the capability set from metadata and state.
// Externally supplied capability flags are never trusted.
func ComputeCapabilities(md schema.TabMetadata, st schema.TabState) schema.Capabilities {
	perms := st.Permissions
	hasURI := md.URI != ""
	return schema.Capabilities{
		CanClose:         true,
		CanPin:           !st.IsPinned && !st.IsChild,
		CanUnpin:         st.IsPinned,
		CanReveal:        hasURI && md.Scheme == "file" && !perms.Restricts(ActionReveal),
		CanSplit:         md.Kind == schema.TabKindFile || md.Kind == schema.TabKindCustom || md.Kind == schema.TabKindNotebook,
		CanRename:        perms.CanRename && !perms.Restricts(ActionRename),
		CanTogglePreview: IsMarkdown(md),
		CanDuplicate:     hasURI && md.Kind != schema.TabKindDiff && !perms.Restricts(ActionDuplicate),
		CanMoveToGroup:   !st.IsChild && perms.CanMove && !perms.Restricts(ActionMove),
		CanAddToChat:     hasURI && !md.IsBinary && !perms.Restricts(ActionAddToChat),
		CanCompare:       hasURI && md.Kind == schema.TabKindFile,
		CanExpand:        st.HasChildren,
	}
}

// Refresh recomputes the derived capability set in place.
func Refresh(tab *schema.Tab) {
	tab.State.Capabilities = ComputeCapabilities(tab.Metadata, tab.State)
}
