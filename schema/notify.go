package schema

// ChangeChannel names one of the store's change channels.
type ChangeChannel string

const (
	// ChannelStructural fires on add/remove/update; consumers rebuild.
	ChannelStructural ChangeChannel = "structural"
	// ChannelSilent fires on active/preview-only updates; consumers patch in place.
	ChannelSilent ChangeChannel = "silent"
	// ChannelTabState fires per tab when only decorations changed.
	ChannelTabState ChangeChannel = "tab-state"
)

// ChangeKind describes what changed.
type ChangeKind string

const (
	ChangeTabAdded     ChangeKind = "tab-added"
	ChangeTabRemoved   ChangeKind = "tab-removed"
	ChangeTabUpdated   ChangeKind = "tab-updated"
	ChangeGroupAdded   ChangeKind = "group-added"
	ChangeGroupRemoved ChangeKind = "group-removed"
	ChangeGroupUpdated ChangeKind = "group-updated"
	ChangeReplaced     ChangeKind = "replaced"
)

// ChangeEvent is published by the entity store.
type ChangeEvent struct {
	Channel ChangeChannel
	Kind    ChangeKind
	TabID   TabID
	GroupID GroupID
}
