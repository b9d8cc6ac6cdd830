// Package format renders engine state for terminals.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"pkt.systems/sidetabs/schema"
)

// Source is the read side of the engine the renderer needs.
type Source interface {
	GetAllGroups() []schema.Group
	GetTabsInGroup(group schema.GroupID) []schema.Tab
}

// TreeRenderer formats groups, tabs and comparison children as a tree.
type TreeRenderer struct {
	group    lipgloss.Style
	active   lipgloss.Style
	child    lipgloss.Style
	orphan   lipgloss.Style
	badge    lipgloss.Style
	added    lipgloss.Style
	removed  lipgloss.Style
	problems map[schema.DiagnosticSeverity]lipgloss.Style
}

// NewTreeRenderer returns a renderer whose color profile follows w. Plain
// writers such as files and buffers get unstyled output.
func NewTreeRenderer(w io.Writer) *TreeRenderer {
	r := lipgloss.NewRenderer(w)
	return &TreeRenderer{
		group:   r.NewStyle().Bold(true),
		active:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		child:   r.NewStyle().Foreground(lipgloss.Color("245")),
		orphan:  r.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		badge:   r.NewStyle().Foreground(lipgloss.Color("244")),
		added:   r.NewStyle().Foreground(lipgloss.Color("2")),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")),
		problems: map[schema.DiagnosticSeverity]lipgloss.Style{
			schema.DiagnosticError:   r.NewStyle().Foreground(lipgloss.Color("1")),
			schema.DiagnosticWarning: r.NewStyle().Foreground(lipgloss.Color("3")),
		},
	}
}

// Render writes every group of src. Comparison tabs are nested under their
// parent when the parent is in the same group.
func (p *TreeRenderer) Render(w io.Writer, src Source) error {
	groups := src.GetAllGroups()
	if len(groups) == 0 {
		_, err := io.WriteString(w, "no editor groups\n")
		return err
	}
	for _, g := range groups {
		if _, err := io.WriteString(w, p.GroupTree(g, src.GetTabsInGroup(g.ID)).String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// GroupTree builds the tree of one group.
func (p *TreeRenderer) GroupTree(g schema.Group, tabs []schema.Tab) *tree.Tree {
	title := fmt.Sprintf("group %d", g.ID)
	if g.IsActive {
		title += " (active)"
	}
	root := tree.Root(p.group.Render(title))
	present := make(map[schema.TabID]bool, len(tabs))
	children := make(map[schema.TabID][]schema.Tab)
	for _, tab := range tabs {
		present[tab.ID()] = true
	}
	for _, tab := range tabs {
		if tab.IsDiff() && present[tab.Metadata.ParentID] {
			children[tab.Metadata.ParentID] = append(children[tab.Metadata.ParentID], tab)
		}
	}
	for _, tab := range tabs {
		if tab.IsDiff() && present[tab.Metadata.ParentID] {
			continue
		}
		kids := children[tab.ID()]
		if len(kids) == 0 {
			root.Child(p.TabLine(tab))
			continue
		}
		node := tree.Root(p.TabLine(tab))
		for _, kid := range kids {
			node.Child(p.TabLine(kid))
		}
		root.Child(node)
	}
	return root
}

// TabLine formats one tab with its state badges.
func (p *TreeRenderer) TabLine(tab schema.Tab) string {
	st := tab.State
	label := tab.Metadata.Label
	if label == "" {
		label = string(tab.ID())
	}
	switch {
	case st.IsActive:
		label = p.active.Render(label)
	case tab.IsDiff() && tab.Metadata.ParentID != "" && !st.IsChild:
		label = p.orphan.Render(label)
	case tab.IsDiff():
		label = p.child.Render(label)
	}
	parts := []string{label}
	var flags []string
	if st.IsActive {
		flags = append(flags, "active")
	}
	if st.IsPinned {
		flags = append(flags, "pinned")
	}
	if st.IsDirty {
		flags = append(flags, "dirty")
	}
	if st.IsPreview {
		flags = append(flags, "preview")
	}
	if st.ViewMode == schema.ViewModePreview {
		flags = append(flags, "rendered")
	}
	if st.GitStatus != schema.GitStatusNone {
		flags = append(flags, string(st.GitStatus))
	}
	if st.Integrations.InChatContext {
		flags = append(flags, "chat")
	}
	if len(flags) > 0 {
		parts = append(parts, p.badge.Render("["+strings.Join(flags, " ")+"]"))
	}
	if st.Diagnostic != schema.DiagnosticNone {
		style, ok := p.problems[st.Diagnostic]
		if !ok {
			style = p.badge
		}
		parts = append(parts, style.Render(string(st.Diagnostic)))
	}
	if st.HasChildren {
		parts = append(parts, p.badge.Render(fmt.Sprintf("(%d)", st.ChildrenCount)))
	}
	if stats := st.DiffStats; stats != nil {
		if stats.ConflictSections > 0 {
			parts = append(parts, p.removed.Render(fmt.Sprintf("%d conflicts", stats.ConflictSections)))
		} else {
			parts = append(parts, p.added.Render(fmt.Sprintf("+%d", stats.LinesAdded)), p.removed.Render(fmt.Sprintf("-%d", stats.LinesRemoved)))
		}
	}
	if op := st.Operation; op != nil {
		state := fmt.Sprintf("%d%%", op.Progress)
		if op.Cancelled {
			state = "cancelled at " + state
		}
		parts = append(parts, p.badge.Render(op.Name+" "+state))
	}
	return strings.Join(parts, " ")
}
