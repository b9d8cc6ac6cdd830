package core

import (
	"context"
	"strconv"

	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/schema"
)

// identity is a stable host-side key for a native tab, independent of its
// active/dirty flags.
func identity(native schema.NativeTab) string {
	if key := convert.NativeKey(native); key != "" {
		return key
	}
	if id, ok := convert.GenerateIDFromNativeTab(native); ok {
		return string(id)
	}
	return "label|" + native.Label + "|" + strconv.Itoa(int(native.Group))
}

// nativeIndex returns the position of native among the natives of its group.
func nativeIndex(natives []schema.NativeTab, native schema.NativeTab) int {
	want := identity(native)
	idx := 0
	for _, n := range natives {
		if n.Group != native.Group {
			continue
		}
		if identity(n) == want {
			return idx
		}
		idx++
	}
	return -1
}

// currentNative re-reads native from the host. Notification payloads are
// snapshots and may be stale by the time they are handled.
func (e *Engine) currentNative(ctx context.Context, native schema.NativeTab) (schema.NativeTab, []schema.NativeTab, bool) {
	natives := e.host.NativeTabs(ctx)
	want := identity(native)
	for _, n := range natives {
		if identity(n) == want {
			return n, natives, true
		}
	}
	return schema.NativeTab{}, natives, false
}

// nativeIDLocked maps a native tab to its store id. Diff natives resolve
// through the key index. Callers hold syncMu.
func (e *Engine) nativeIDLocked(native schema.NativeTab) (schema.TabID, bool) {
	if key := convert.NativeKey(native); key != "" {
		id, ok := e.keyIndex[key]
		return id, ok
	}
	return convert.GenerateIDFromNativeTab(native)
}

// findNativeLocked locates the native backing tabID in the host's current
// tab list.
func (e *Engine) findNativeLocked(ctx context.Context, tabID schema.TabID) (schema.NativeTab, int, bool) {
	natives := e.host.NativeTabs(ctx)
	for _, native := range natives {
		if id, ok := e.nativeIDLocked(native); ok && id == tabID {
			return native, nativeIndex(natives, native), true
		}
	}
	return schema.NativeTab{}, -1, false
}

// findPreviewNative returns the rendered preview surface showing fileName in
// group, if the host has one open.
func findPreviewNative(natives []schema.NativeTab, group schema.GroupID, fileName string) (schema.NativeTab, int, bool) {
	for _, native := range natives {
		if native.Group != group {
			continue
		}
		if name, ok := convert.PreviewSourceName(native); ok && name == fileName {
			return native, nativeIndex(natives, native), true
		}
	}
	return schema.NativeTab{}, -1, false
}

// findFileNative returns the file native in group whose locator normalizes
// to locator.
func findFileNative(natives []schema.NativeTab, group schema.GroupID, locator string) (schema.NativeTab, bool) {
	for _, native := range natives {
		if native.Group != group {
			continue
		}
		in, ok := native.Input.(schema.FileInput)
		if !ok || in.URI == "" {
			continue
		}
		if classify.NormalizeLocator(in.URI) == locator {
			return native, true
		}
	}
	return schema.NativeTab{}, false
}

func (e *Engine) rememberKeyLocked(key string, id schema.TabID) {
	if key == "" {
		return
	}
	if prev, ok := e.keyIndex[key]; ok && prev != id {
		delete(e.keyByID, prev)
	}
	e.keyIndex[key] = id
	e.keyByID[id] = key
}

func (e *Engine) forgetKeyLocked(id schema.TabID) {
	if key, ok := e.keyByID[id]; ok {
		delete(e.keyByID, id)
		if e.keyIndex[key] == id {
			delete(e.keyIndex, key)
		}
	}
}

// carryOver keeps per-tab persistent choices and hierarchy bookkeeping when
// an existing id is reconverted.
func carryOver(prev, next schema.Tab) schema.Tab {
	st := &next.State
	st.ViewMode = prev.State.ViewMode
	st.Operation = prev.State.Operation
	st.Integrations = prev.State.Integrations
	st.CustomActions = prev.State.CustomActions
	st.Shortcuts = prev.State.Shortcuts
	st.Cursor = prev.State.Cursor
	st.HasChildren = prev.State.HasChildren
	st.ChildrenCount = prev.State.ChildrenCount
	st.IsChild = prev.State.IsChild
	st.SyncVersion = prev.State.SyncVersion
	if st.DiffStats == nil {
		st.DiffStats = prev.State.DiffStats
	}
	return next.Clone()
}

func (e *Engine) decorate(tab *schema.Tab) {
	if tab.IsDiff() || tab.Metadata.URI == "" {
		return
	}
	if e.git != nil {
		tab.State.GitStatus = e.git.GitStatus(tab.Metadata.URI)
		if tab.State.GitStatus != schema.GitStatusNone {
			summary := &schema.GitSummary{Status: tab.State.GitStatus}
			if br, ok := e.git.(BranchReporter); ok {
				summary.Branch = br.Branch()
			}
			tab.State.Integrations.Git = summary
		} else {
			tab.State.Integrations.Git = nil
		}
	}
	if e.diags != nil {
		tab.State.Diagnostic = e.diags.DiagnosticSeverity(tab.Metadata.URI)
	}
}

// findResourceNative returns the non-diff native in group showing locator.
func findResourceNative(natives []schema.NativeTab, group schema.GroupID, locator string) (schema.NativeTab, bool) {
	for _, native := range natives {
		if native.Group != group || native.Kind() == schema.TabKindDiff {
			continue
		}
		if uri := native.URI(); uri != "" && classify.NormalizeLocator(uri) == locator {
			return native, true
		}
	}
	return schema.NativeTab{}, false
}
