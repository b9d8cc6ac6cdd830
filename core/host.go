package core

import (
	"context"

	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/internal/hierarchy"
	"pkt.systems/sidetabs/schema"
)

// Host is the editor the engine mirrors. Every read returns the host's
// current state; the engine never caches host answers across calls.
// Notifications caused by a host call are delivered through the event
// stream, never by calling back into the engine.
type Host interface {
	hierarchy.EditorHost

	NativeTabs(ctx context.Context) []schema.NativeTab
	NativeGroups(ctx context.Context) []schema.NativeGroup
	OpenDocument(ctx context.Context, uri string, opts schema.OpenOptions) error
	CloseNativeTabs(ctx context.Context, tabs []schema.NativeTab) error
	ActivateNativeTab(ctx context.Context, group schema.GroupID, index int) error
	SetNativePinned(ctx context.Context, tab schema.NativeTab, pinned bool) error
}

// GitStatusProvider reports git decoration for a resource.
type GitStatusProvider = convert.GitStatusProvider

// BranchReporter is implemented by git providers that know the checked out
// branch.
type BranchReporter interface {
	Branch() string
}

// DiagnosticsProvider reports the worst diagnostic severity of a resource.
type DiagnosticsProvider interface {
	DiagnosticSeverity(uri string) schema.DiagnosticSeverity
}
