package schema

// HostEventType identifies a host notification stream.
type HostEventType string

const (
	// HostEventTabs carries a batch of opened/changed/closed tabs.
	HostEventTabs HostEventType = "tabs"
	// HostEventGroups carries opened/closed/changed groups.
	HostEventGroups HostEventType = "groups"
	// HostEventActiveEditor reports the focused editor changed.
	HostEventActiveEditor HostEventType = "active-editor"
	// HostEventDiagnostics reports diagnostics changed for resources.
	HostEventDiagnostics HostEventType = "diagnostics"
)

// TabChangeEvent is one batch of host tab changes.
type TabChangeEvent struct {
	Opened  []NativeTab
	Changed []NativeTab
	Closed  []NativeTab
}

// GroupChangeEvent is one batch of host group changes.
type GroupChangeEvent struct {
	Opened  []NativeGroup
	Closed  []NativeGroup
	Changed []NativeGroup
}

// ActiveEditorEvent reports the resource shown in the focused editor.
type ActiveEditorEvent struct {
	URI   string
	Group GroupID
}

// DiagnosticsEvent lists resources whose diagnostics changed.
type DiagnosticsEvent struct {
	URIs []string
}

// HostEvent is a single notification from the host editor.
type HostEvent struct {
	Type         HostEventType
	Tabs         TabChangeEvent
	Groups       GroupChangeEvent
	ActiveEditor ActiveEditorEvent
	Diagnostics  DiagnosticsEvent
}
