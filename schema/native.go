package schema

// NativeInput is the closed set of host tab inputs.
type NativeInput interface {
	nativeKind() TabKind
}

// FileInput is a plain text editor.
type FileInput struct {
	URI string
}

// DiffInput is a comparison editor.
type DiffInput struct {
	Original string
	Modified string
}

// WebviewInput is a webview panel (including rendered previews).
type WebviewInput struct {
	ViewType string
}

// CustomInput is a custom editor.
type CustomInput struct {
	URI      string
	ViewType string
}

// NotebookInput is a notebook editor.
type NotebookInput struct {
	URI          string
	NotebookType string
}

// TerminalInput is a terminal in the editor area. It carries nothing actionable.
type TerminalInput struct{}

// UnknownInput is anything the host could not describe.
type UnknownInput struct{}

func (FileInput) nativeKind() TabKind { return TabKindFile }
func (DiffInput) nativeKind() TabKind { return TabKindDiff }
func (WebviewInput) nativeKind() TabKind { return TabKindWebview }
func (CustomInput) nativeKind() TabKind { return TabKindCustom }
func (NotebookInput) nativeKind() TabKind { return TabKindNotebook }
func (TerminalInput) nativeKind() TabKind { return TabKindUnknown }
func (UnknownInput) nativeKind() TabKind { return TabKindUnknown }

// NativeTab is the host's description of one open tab.
type NativeTab struct {
	Label     string
	Group     GroupID
	IsActive  bool
	IsDirty   bool
	IsPinned  bool
	IsPreview bool
	Input     NativeInput
}

// Kind returns the coarse kind of the tab input.
func (n NativeTab) Kind() TabKind {
	if n.Input == nil {
		return TabKindUnknown
	}
	return n.Input.nativeKind()
}

// URI returns the primary resource locator, if any. For diffs this is the
// modified side.
func (n NativeTab) URI() string {
	switch in := n.Input.(type) {
	case FileInput:
		return in.URI
	case DiffInput:
		return in.Modified
	case CustomInput:
		return in.URI
	case NotebookInput:
		return in.URI
	default:
		return ""
	}
}

// NativeGroup is the host's description of one editor group.
type NativeGroup struct {
	Column   GroupID
	IsActive bool
}

// VisibleEditor is an editor currently rendered by the host.
type VisibleEditor struct {
	URI   string
	Group GroupID
}

// OpenOptions controls how the host materializes an editor.
type OpenOptions struct {
	Group         GroupID
	Index         int // -1 appends
	Preview       bool
	PreserveFocus bool
}
