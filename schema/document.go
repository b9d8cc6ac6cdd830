package schema

import (
	"maps"
	"slices"
	"time"
)

// CommitInfo describes the commit a version was taken from.
type CommitInfo struct {
	Hash    string
	Message string
	Author  string
}

// EditInfo describes an AI-generated edit.
type EditInfo struct {
	Source      string
	Description string
}

// ConflictInfo describes a merge-conflict version.
type ConflictInfo struct {
	Sections int
	Resolved bool
}

// Version is one diff or snapshot entry of a document.
type Version struct {
	ID           VersionID
	DocumentID   DocumentID
	DiffType     DiffType
	Label        string
	OriginalURI  string
	ModifiedURI  string
	Stats        *DiffStats
	CreatedAt    time.Time
	LastAccess   time.Time
	Commit       *CommitInfo
	Branch       string
	Edit         *EditInfo
	Conflict     *ConflictInfo
	RelatedTabID TabID
	IsActive     bool
}

// Clone returns a deep copy of the version.
func (v Version) Clone() Version {
	if v.Stats != nil {
		stats := *v.Stats
		v.Stats = &stats
	}
	if v.Commit != nil {
		commit := *v.Commit
		v.Commit = &commit
	}
	if v.Edit != nil {
		edit := *v.Edit
		v.Edit = &edit
	}
	if v.Conflict != nil {
		conflict := *v.Conflict
		v.Conflict = &conflict
	}
	return v
}

// SnapshotEntry is one line of a document's snapshot history.
type SnapshotEntry struct {
	VersionID VersionID
	Label     string
	At        time.Time
}

// Document aggregates every known version of one base file.
type Document struct {
	ID              DocumentID
	URI             string
	LanguageID      string
	FileName        string
	Extension       string
	IsReadOnly      bool
	IsBinary        bool
	Versions        map[VersionID]*Version
	ActiveVersionID VersionID
	ParentTabID     TabID
	ChildTabIDs     map[TabID]struct{}
	VersionCount    int
	TypeCounts      map[DiffType]int
	SnapshotHistory []SnapshotEntry
	CreatedAt       time.Time
	LastAccess      time.Time
}

// Collectible reports whether no tab references the document.
func (d *Document) Collectible() bool {
	return d.ParentTabID == "" && len(d.ChildTabIDs) == 0
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() Document {
	out := *d
	out.Versions = make(map[VersionID]*Version, len(d.Versions))
	for id, v := range d.Versions {
		cp := v.Clone()
		out.Versions[id] = &cp
	}
	out.ChildTabIDs = maps.Clone(d.ChildTabIDs)
	if out.ChildTabIDs == nil {
		out.ChildTabIDs = map[TabID]struct{}{}
	}
	out.TypeCounts = maps.Clone(d.TypeCounts)
	if out.TypeCounts == nil {
		out.TypeCounts = map[DiffType]int{}
	}
	out.SnapshotHistory = slices.Clone(d.SnapshotHistory)
	return out
}
