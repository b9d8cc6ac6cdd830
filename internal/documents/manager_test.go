package documents

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"pkt.systems/sidetabs/schema"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	cfg, err := schema.NormalizeEngineConfig(schema.EngineConfig{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := New(cfg, nil)
	m.now = clock.now
	seq := 0
	m.newID = func() schema.VersionID {
		seq++
		return schema.VersionID(fmt.Sprintf("v%d", seq))
	}
	return m, clock
}

func TestGetOrCreateIsIdempotentAcrossSchemes(t *testing.T) {
	m, _ := newTestManager(t)
	first, created := m.GetOrCreateDocument("file:///repo/a.go")
	if !created {
		t.Fatalf("expected first call to create")
	}
	second, created := m.GetOrCreateDocument("git:/repo/a.go?{\"ref\":\"HEAD\"}")
	if created || second.ID != first.ID {
		t.Fatalf("expected same document for git locator, got %q vs %q", second.ID, first.ID)
	}
	if first.LanguageID != "go" || first.FileName != "a.go" || first.Extension != ".go" {
		t.Fatalf("unexpected document metadata: %+v", first)
	}
	if len(m.Documents()) != 1 {
		t.Fatalf("expected one document")
	}
}

func TestRegisterVersionCountersAndHistory(t *testing.T) {
	m, _ := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	if _, err := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffSnapshot, Label: "a.go (Snapshot)"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffEdit}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := m.RegisterVersion(doc.ID, schema.Version{DiffType: "bogus"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := m.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VersionCount != 3 {
		t.Fatalf("expected 3 versions, got %d", got.VersionCount)
	}
	if got.TypeCounts[schema.DiffSnapshot] != 1 || got.TypeCounts[schema.DiffEdit] != 1 || got.TypeCounts[schema.DiffUnknown] != 1 {
		t.Fatalf("unexpected type counts: %+v", got.TypeCounts)
	}
	if len(got.SnapshotHistory) != 1 || got.SnapshotHistory[0].Label != "a.go (Snapshot)" {
		t.Fatalf("unexpected snapshot history: %+v", got.SnapshotHistory)
	}
	if _, err := m.RegisterVersion("file:///missing", schema.Version{}); !errors.Is(err, schema.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSetActiveVersionIsExclusive(t *testing.T) {
	m, _ := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	v1, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffWorkingTree, IsActive: true})
	v2, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffStaged})
	if err := m.SetActiveVersion(doc.ID, v2.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	got, _ := m.GetDocument(doc.ID)
	active := 0
	for _, v := range got.Versions {
		if v.IsActive {
			active++
		}
	}
	if active != 1 || !got.Versions[v2.ID].IsActive || got.Versions[v1.ID].IsActive {
		t.Fatalf("expected only v2 active, got %d active", active)
	}
	if err := m.SetActiveVersion(doc.ID, "nope"); !errors.Is(err, schema.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestFindVersionByRelatedTabAndStats(t *testing.T) {
	m, _ := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	v, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffWorkingTree, RelatedTabID: "diff-1"})
	if err := m.UpdateVersionStats(doc.ID, v.ID, schema.DiffStats{LinesAdded: 4, LinesRemoved: 1}); err != nil {
		t.Fatalf("update stats: %v", err)
	}
	found, ok := m.FindVersionByRelatedTab("diff-1")
	if !ok || found.Stats == nil || found.Stats.LinesAdded != 4 {
		t.Fatalf("expected stats via related tab, got %+v", found)
	}
	if _, ok := m.FindVersionByRelatedTab("diff-2"); ok {
		t.Fatalf("unexpected version for unknown tab")
	}
}

func TestGarbageCollectionRespectsChildren(t *testing.T) {
	m, clock := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	if err := m.AssociateChildTab(doc.ID, "diff-1"); err != nil {
		t.Fatalf("associate: %v", err)
	}
	clock.advance(24 * time.Hour)
	if got := m.CollectGarbage(); len(got) != 0 {
		t.Fatalf("document with children must not be collected: %v", got)
	}
	if err := m.DissociateChildTab(doc.ID, "diff-1"); err != nil {
		t.Fatalf("dissociate: %v", err)
	}
	clock.advance(schema.DefaultInactivityThreshold - time.Second)
	if got := m.CollectGarbage(); len(got) != 0 {
		t.Fatalf("collected before inactivity threshold: %v", got)
	}
	clock.advance(time.Second)
	if got := m.CollectGarbage(); len(got) != 1 || got[0] != doc.ID {
		t.Fatalf("expected document collected, got %v", got)
	}
	if _, err := m.GetDocument(doc.ID); !errors.Is(err, schema.ErrDocumentNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
}

func TestGarbageCollectionRespectsParent(t *testing.T) {
	m, clock := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	_ = m.AssociateParentTab(doc.ID, "file:///repo/a.go-1")
	clock.advance(time.Hour)
	if got := m.CollectGarbage(); len(got) != 0 {
		t.Fatalf("document with parent must not be collected")
	}
	if touched := m.DissociateTab("file:///repo/a.go-1"); len(touched) != 1 {
		t.Fatalf("expected one touched document, got %v", touched)
	}
	clock.advance(schema.DefaultInactivityThreshold)
	if got := m.CollectGarbage(); len(got) != 1 {
		t.Fatalf("expected collection after parent dissociation")
	}
}

func TestCleanupOldVersionsKeepsActive(t *testing.T) {
	m, clock := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	old, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffCommit})
	active, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffCommit, IsActive: true})
	clock.advance(2 * time.Hour)
	fresh, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffEdit})
	if removed := m.CleanupOldVersions(time.Hour); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	got, _ := m.GetDocument(doc.ID)
	if _, ok := got.Versions[old.ID]; ok {
		t.Fatalf("old version should be gone")
	}
	if _, ok := got.Versions[active.ID]; !ok {
		t.Fatalf("active version must survive")
	}
	if _, ok := got.Versions[fresh.ID]; !ok {
		t.Fatalf("fresh version must survive")
	}
	if got.VersionCount != 2 || got.TypeCounts[schema.DiffCommit] != 1 {
		t.Fatalf("unexpected counters: %d %+v", got.VersionCount, got.TypeCounts)
	}
}

func TestCleanupOldVersionsPrunesSnapshotHistory(t *testing.T) {
	m, clock := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.go")
	old, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffSnapshot, Label: "a.go (Snapshot 1)"})
	clock.advance(2 * time.Hour)
	fresh, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffSnapshot, Label: "a.go (Snapshot 2)"})
	if removed := m.CleanupOldVersions(time.Hour); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	got, _ := m.GetDocument(doc.ID)
	if len(got.SnapshotHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %+v", got.SnapshotHistory)
	}
	if entry := got.SnapshotHistory[0]; entry.VersionID != fresh.ID || entry.VersionID == old.ID {
		t.Fatalf("history kept the wrong entry: %+v", entry)
	}
}

func TestRetitleAndDeactivateVersion(t *testing.T) {
	m, _ := newTestManager(t)
	doc := m.CreateDocument("file:///repo/a.ts")
	v, _ := m.RegisterVersion(doc.ID, schema.Version{DiffType: schema.DiffEdit, Label: "a.ts+6-6", IsActive: true,
		Stats: &schema.DiffStats{LinesAdded: 6, LinesRemoved: 6}})
	if err := m.RetitleVersion(doc.ID, v.ID, "a.ts+9-6", &schema.DiffStats{LinesAdded: 9, LinesRemoved: 6}); err != nil {
		t.Fatalf("retitle: %v", err)
	}
	got, _ := m.GetDocument(doc.ID)
	if rv := got.Versions[v.ID]; rv.Label != "a.ts+9-6" || rv.Stats == nil || rv.Stats.LinesAdded != 9 {
		t.Fatalf("unexpected retitled version: %+v", rv)
	}
	if err := m.RetitleVersion(doc.ID, v.ID, "a.ts", nil); err != nil {
		t.Fatalf("retitle without stats: %v", err)
	}
	got, _ = m.GetDocument(doc.ID)
	if rv := got.Versions[v.ID]; rv.Stats == nil || rv.Stats.LinesAdded != 9 {
		t.Fatalf("nil stats must keep the previous stats: %+v", rv)
	}

	if err := m.DeactivateVersion(doc.ID, v.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ = m.GetDocument(doc.ID)
	if got.Versions[v.ID].IsActive || got.ActiveVersionID != "" {
		t.Fatalf("expected no active version, got %q", got.ActiveVersionID)
	}
	if err := m.DeactivateVersion(doc.ID, "nope"); !errors.Is(err, schema.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
	if err := m.RetitleVersion("file:///missing", v.ID, "x", nil); !errors.Is(err, schema.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
