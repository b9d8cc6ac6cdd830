package format

import (
	"bytes"
	"strings"
	"testing"

	"pkt.systems/sidetabs/schema"
)

type fakeSource struct {
	groups []schema.Group
	tabs   map[schema.GroupID][]schema.Tab
}

func (f fakeSource) GetAllGroups() []schema.Group { return f.groups }

func (f fakeSource) GetTabsInGroup(group schema.GroupID) []schema.Tab { return f.tabs[group] }

func tab(id, label string, kind schema.TabKind, parent schema.TabID) schema.Tab {
	return schema.Tab{
		Metadata: schema.TabMetadata{ID: schema.TabID(id), Label: label, Kind: kind, ParentID: parent},
	}
}

func TestRenderNestsChildrenUnderParent(t *testing.T) {
	parent := tab("file:a", "a.go", schema.TabKindFile, "")
	parent.State.HasChildren = true
	parent.State.ChildrenCount = 1
	parent.State.IsActive = true
	child := tab("diff:a", "a.go (Working Tree)", schema.TabKindDiff, "file:a")
	child.State.IsChild = true
	child.State.DiffStats = &schema.DiffStats{LinesAdded: 3, LinesRemoved: 1}
	orphan := tab("diff:b", "b.go (Index)", schema.TabKindDiff, "file:b")
	src := fakeSource{
		groups: []schema.Group{{ID: 1, IsActive: true}},
		tabs:   map[schema.GroupID][]schema.Tab{1: {parent, child, orphan}},
	}
	var buf bytes.Buffer
	if err := NewTreeRenderer(&buf).Render(&buf, src); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"group 1 (active)", "a.go [active] (1)", "a.go (Working Tree) +3 -1", "b.go (Index)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	childLine, orphanLine := lines[2], lines[3]
	if strings.Index(childLine, "a.go (Working Tree)") <= strings.Index(orphanLine, "b.go (Index)") {
		t.Fatalf("expected the child indented deeper than the orphan:\n%s", out)
	}
}

func TestTabLineBadges(t *testing.T) {
	r := NewTreeRenderer(&bytes.Buffer{})
	cases := []struct {
		name string
		edit func(*schema.Tab)
		want string
	}{
		{"plain", func(*schema.Tab) {}, "a.go"},
		{"pinned dirty", func(tb *schema.Tab) { tb.State.IsPinned, tb.State.IsDirty = true, true }, "a.go [pinned dirty]"},
		{"git and diagnostics", func(tb *schema.Tab) {
			tb.State.GitStatus = schema.GitStatusModified
			tb.State.Diagnostic = schema.DiagnosticError
		}, "a.go [modified] error"},
		{"conflict", func(tb *schema.Tab) { tb.State.DiffStats = &schema.DiffStats{ConflictSections: 1} }, "a.go 1 conflicts"},
		{"operation", func(tb *schema.Tab) {
			tb.State.Operation = &schema.Operation{Name: "index", Progress: 40, Cancelled: true}
		}, "a.go index cancelled at 40%"},
	}
	for _, tc := range cases {
		tb := tab("file:a", "a.go", schema.TabKindFile, "")
		tc.edit(&tb)
		if got := r.TabLine(tb); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRenderWithoutGroups(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTreeRenderer(&buf).Render(&buf, fakeSource{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "no editor groups\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
