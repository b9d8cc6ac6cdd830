// Package documents tracks document aggregates and their diff versions.
package documents

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/internal/convert"
	"pkt.systems/sidetabs/schema"
)

var languageByExt = map[string]string{
	".go": "go", ".ts": "typescript", ".tsx": "typescriptreact", ".js": "javascript", ".jsx": "javascriptreact",
	".py": "python", ".rs": "rust", ".java": "java", ".c": "c", ".h": "c", ".cpp": "cpp", ".rb": "ruby",
	".sh": "shellscript", ".md": "markdown", ".markdown": "markdown", ".json": "json", ".yaml": "yaml",
	".yml": "yaml", ".toml": "toml", ".css": "css", ".scss": "scss", ".html": "html", ".sql": "sql",
}

// Manager owns document aggregates. All accessors return copies so a
// document collected by the GC loop is never observed half-deleted.
type Manager struct {
	mu   sync.Mutex
	docs map[schema.DocumentID]*schema.Document
	cfg  schema.EngineConfig
	log  pslog.Logger

	now   func() time.Time
	newID func() schema.VersionID
}

// New constructs a Manager. cfg must already be normalized.
func New(cfg schema.EngineConfig, logger pslog.Logger) *Manager {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Manager{
		docs:  make(map[schema.DocumentID]*schema.Document),
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
		newID: func() schema.VersionID { return schema.VersionID(uuid.NewString()) },
	}
}

// DocumentIDFor returns the document id of a resource locator.
func DocumentIDFor(uri string) schema.DocumentID {
	return schema.DocumentID(classify.NormalizeLocator(uri))
}

// CreateDocument returns the document for uri, creating it on first use.
func (m *Manager) CreateDocument(uri string) schema.Document {
	doc, _ := m.GetOrCreateDocument(uri)
	return doc
}

// GetOrCreateDocument returns the document for uri and whether it was created.
func (m *Manager) GetOrCreateDocument(uri string) (schema.Document, bool) {
	id := DocumentIDFor(uri)
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc := m.docs[id]; doc != nil {
		doc.LastAccess = m.now()
		return doc.Clone(), false
	}
	md := convert.Enrich(schema.TabMetadata{URI: string(id)})
	scheme := classify.Scheme(uri)
	now := m.now()
	doc := &schema.Document{
		ID:          id,
		URI:         string(id),
		LanguageID:  languageByExt[md.Extension],
		FileName:    md.FileName,
		Extension:   md.Extension,
		IsReadOnly:  scheme != "" && scheme != "file" && scheme != "untitled",
		IsBinary:    md.IsBinary,
		Versions:    make(map[schema.VersionID]*schema.Version),
		ChildTabIDs: make(map[schema.TabID]struct{}),
		TypeCounts:  make(map[schema.DiffType]int),
		CreatedAt:   now,
		LastAccess:  now,
	}
	m.docs[id] = doc
	m.log.Debug("documents created", "document", id)
	return doc.Clone(), true
}

// GetDocument returns a copy of the document.
func (m *Manager) GetDocument(id schema.DocumentID) (schema.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[id]
	if doc == nil {
		return schema.Document{}, schema.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

// FindDocumentByURI looks up the document of uri without creating it.
func (m *Manager) FindDocumentByURI(uri string) (schema.Document, bool) {
	doc, err := m.GetDocument(DocumentIDFor(uri))
	return doc, err == nil
}

// Documents returns every document ordered by id.
func (m *Manager) Documents() []schema.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc.Clone())
	}
	slices.SortFunc(out, func(a, b schema.Document) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RegisterVersion appends a version to the document and returns it with its
// assigned id. An active version deactivates every other version.
func (m *Manager) RegisterVersion(docID schema.DocumentID, v schema.Version) (schema.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.Version{}, fmt.Errorf("register version: %w", schema.ErrDocumentNotFound)
	}
	if !v.DiffType.Valid() {
		v.DiffType = schema.DiffUnknown
	}
	now := m.now()
	v = v.Clone()
	v.ID = m.newID()
	v.DocumentID = docID
	v.CreatedAt = now
	v.LastAccess = now
	doc.Versions[v.ID] = &v
	doc.VersionCount++
	doc.TypeCounts[v.DiffType]++
	if v.DiffType == schema.DiffSnapshot {
		doc.SnapshotHistory = append(doc.SnapshotHistory, schema.SnapshotEntry{VersionID: v.ID, Label: v.Label, At: now})
	}
	if v.IsActive {
		m.activateLocked(doc, v.ID)
	}
	doc.LastAccess = now
	m.log.Debug("documents version registered", "document", docID, "version", v.ID, "diff_type", v.DiffType, "tab", v.RelatedTabID)
	return v.Clone(), nil
}

// SetActiveVersion marks one version active and deactivates the others.
func (m *Manager) SetActiveVersion(docID schema.DocumentID, versionID schema.VersionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.ErrDocumentNotFound
	}
	if doc.Versions[versionID] == nil {
		return schema.ErrVersionNotFound
	}
	m.activateLocked(doc, versionID)
	return nil
}

func (m *Manager) activateLocked(doc *schema.Document, versionID schema.VersionID) {
	now := m.now()
	for id, v := range doc.Versions {
		v.IsActive = id == versionID
		if v.IsActive {
			v.LastAccess = now
		}
	}
	doc.ActiveVersionID = versionID
	doc.LastAccess = now
}

// UpdateVersionStats replaces the stats of a version.
func (m *Manager) UpdateVersionStats(docID schema.DocumentID, versionID schema.VersionID, stats schema.DiffStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.ErrDocumentNotFound
	}
	v := doc.Versions[versionID]
	if v == nil {
		return schema.ErrVersionNotFound
	}
	v.Stats = &stats
	v.LastAccess = m.now()
	return nil
}

// RetitleVersion renames a version. A non-nil stats replaces its stats.
func (m *Manager) RetitleVersion(docID schema.DocumentID, versionID schema.VersionID, label string, stats *schema.DiffStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.ErrDocumentNotFound
	}
	v := doc.Versions[versionID]
	if v == nil {
		return schema.ErrVersionNotFound
	}
	v.Label = label
	if stats != nil {
		s := *stats
		v.Stats = &s
	}
	v.LastAccess = m.now()
	return nil
}

// DeactivateVersion clears the active flag of one version. The document's
// active version is cleared when it pointed at versionID.
func (m *Manager) DeactivateVersion(docID schema.DocumentID, versionID schema.VersionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.ErrDocumentNotFound
	}
	v := doc.Versions[versionID]
	if v == nil {
		return schema.ErrVersionNotFound
	}
	v.IsActive = false
	if doc.ActiveVersionID == versionID {
		doc.ActiveVersionID = ""
	}
	return nil
}

// FindVersionByRelatedTab returns the newest version whose related tab is tabID.
func (m *Manager) FindVersionByRelatedTab(tabID schema.TabID) (schema.Version, bool) {
	if tabID == "" {
		return schema.Version{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *schema.Version
	for _, doc := range m.docs {
		for _, v := range doc.Versions {
			if v.RelatedTabID != tabID {
				continue
			}
			if found == nil || v.CreatedAt.After(found.CreatedAt) {
				found = v
			}
		}
	}
	if found == nil {
		return schema.Version{}, false
	}
	return found.Clone(), true
}

// AssociateParentTab links the document to the file tab showing it.
func (m *Manager) AssociateParentTab(docID schema.DocumentID, tabID schema.TabID) error {
	return m.withDoc(docID, func(doc *schema.Document) {
		doc.ParentTabID = tabID
	})
}

// DissociateParentTab clears the parent link if it still points at tabID.
func (m *Manager) DissociateParentTab(docID schema.DocumentID, tabID schema.TabID) error {
	return m.withDoc(docID, func(doc *schema.Document) {
		if doc.ParentTabID == tabID {
			doc.ParentTabID = ""
		}
	})
}

// AssociateChildTab adds a diff tab to the document's child set.
func (m *Manager) AssociateChildTab(docID schema.DocumentID, tabID schema.TabID) error {
	return m.withDoc(docID, func(doc *schema.Document) {
		doc.ChildTabIDs[tabID] = struct{}{}
	})
}

// DissociateChildTab removes a diff tab from the document's child set.
func (m *Manager) DissociateChildTab(docID schema.DocumentID, tabID schema.TabID) error {
	return m.withDoc(docID, func(doc *schema.Document) {
		delete(doc.ChildTabIDs, tabID)
	})
}

// DissociateTab drops tabID from every document link. It returns the ids of
// the documents that referenced it.
func (m *Manager) DissociateTab(tabID schema.TabID) []schema.DocumentID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var touched []schema.DocumentID
	now := m.now()
	for id, doc := range m.docs {
		_, child := doc.ChildTabIDs[tabID]
		if !child && doc.ParentTabID != tabID {
			continue
		}
		delete(doc.ChildTabIDs, tabID)
		if doc.ParentTabID == tabID {
			doc.ParentTabID = ""
		}
		doc.LastAccess = now
		touched = append(touched, id)
	}
	return touched
}

// Touch refreshes the document's last-access time.
func (m *Manager) Touch(docID schema.DocumentID) error {
	return m.withDoc(docID, func(*schema.Document) {})
}

func (m *Manager) withDoc(docID schema.DocumentID, fn func(*schema.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[docID]
	if doc == nil {
		return schema.ErrDocumentNotFound
	}
	fn(doc)
	doc.LastAccess = m.now()
	return nil
}

func (m *Manager) eligible(doc *schema.Document, now time.Time) bool {
	return doc.Collectible() && now.Sub(doc.LastAccess) >= m.cfg.InactivityThreshold
}

// CollectGarbage deletes every collectible document idle past the
// inactivity threshold. Candidates are re-checked at deletion time.
func (m *Manager) CollectGarbage() []schema.DocumentID {
	m.mu.Lock()
	now := m.now()
	var candidates []schema.DocumentID
	for id, doc := range m.docs {
		if m.eligible(doc, now) {
			candidates = append(candidates, id)
		}
	}
	m.mu.Unlock()

	var collected []schema.DocumentID
	for _, id := range candidates {
		m.mu.Lock()
		doc := m.docs[id]
		if doc != nil && m.eligible(doc, m.now()) {
			delete(m.docs, id)
			collected = append(collected, id)
		}
		m.mu.Unlock()
	}
	if len(collected) > 0 {
		m.log.Info("documents gc collected", "count", len(collected))
	}
	return collected
}

// CleanupOldVersions removes non-active versions older than maxAge together
// with their snapshot history entries, and returns how many versions were
// removed.
func (m *Manager) CleanupOldVersions(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for _, doc := range m.docs {
		for id, v := range doc.Versions {
			if v.IsActive || now.Sub(v.CreatedAt) < maxAge {
				continue
			}
			delete(doc.Versions, id)
			doc.VersionCount--
			if doc.TypeCounts[v.DiffType] > 0 {
				doc.TypeCounts[v.DiffType]--
			}
			removed++
		}
		doc.SnapshotHistory = slices.DeleteFunc(doc.SnapshotHistory, func(e schema.SnapshotEntry) bool {
			return doc.Versions[e.VersionID] == nil
		})
	}
	if removed > 0 {
		m.log.Debug("documents versions pruned", "count", removed, "max_age", maxAge)
	}
	return removed
}

// Run collects garbage every GC interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.GCInterval
	if interval <= 0 {
		interval = schema.DefaultGCInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.log.Info("documents gc started", "interval", interval, "inactivity", m.cfg.InactivityThreshold)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("documents gc stopped")
			return
		case <-ticker.C:
			m.CollectGarbage()
			m.CleanupOldVersions(m.cfg.VersionMaxAge)
		}
	}
}
