// Package core mirrors a host editor's tabs into a hierarchical tab model.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/documents"
	"pkt.systems/sidetabs/internal/dragdrop"
	"pkt.systems/sidetabs/internal/eventbus"
	"pkt.systems/sidetabs/internal/hierarchy"
	"pkt.systems/sidetabs/internal/tabstate"
	"pkt.systems/sidetabs/schema"
)

var (
	activateSleep = time.Sleep
	now           = time.Now
)

// Engine is the reconciliation loop plus the query and action surface
// exposed to presentation layers.
type Engine struct {
	cfg   schema.EngineConfig
	host  Host
	git   GitStatusProvider
	diags DiagnosticsProvider
	log   pslog.Logger

	store *tabstate.Store
	docs  *documents.Manager
	hier  *hierarchy.Service
	drag  *dragdrop.Service

	// syncMu serializes host notification handlers and resyncs so batches
	// are applied first-in-first-out.
	syncMu            sync.Mutex
	keyIndex          map[string]schema.TabID
	keyByID           map[schema.TabID]string
	lastPreviewSource schema.TabID

	opsMu sync.Mutex
	ops   map[schema.TabID]*atomic.Bool
}

// NewEngine constructs an Engine around the host.
func NewEngine(cfg schema.EngineConfig, deps EngineDeps) (*Engine, error) {
	normalized, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Host == nil {
		return nil, errors.New("engine: host is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)
	store := tabstate.New(bus, logger)
	docs := documents.New(normalized, logger)
	e := &Engine{
		cfg:      normalized,
		host:     deps.Host,
		git:      deps.Git,
		diags:    deps.Diagnostics,
		log:      logger,
		store:    store,
		docs:     docs,
		hier:     hierarchy.New(store, docs, deps.Host, normalized, logger),
		keyIndex: make(map[string]schema.TabID),
		keyByID:  make(map[schema.TabID]string),
		ops:      make(map[schema.TabID]*atomic.Bool),
	}
	e.drag = dragdrop.New(store, e, logger)
	return e, nil
}

// Config returns the normalized engine configuration.
func (e *Engine) Config() schema.EngineConfig {
	return e.cfg
}

// Documents exposes the document manager.
func (e *Engine) Documents() *documents.Manager {
	return e.docs
}

// Run performs a full resync, starts document GC and then applies host
// events in order until ctx is done or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan schema.HostEvent) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	ctx = pslog.ContextWithLogger(ctx, e.log)
	e.SyncAll(ctx)
	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go e.docs.Run(gcCtx)
	e.log.Info("engine started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				e.log.Info("engine events closed")
				return nil
			}
			e.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent dispatches one host notification.
func (e *Engine) HandleEvent(ctx context.Context, ev schema.HostEvent) {
	switch ev.Type {
	case schema.HostEventTabs:
		e.HandleTabChanges(ctx, ev.Tabs)
	case schema.HostEventGroups:
		e.HandleGroupChanges(ctx, ev.Groups)
	case schema.HostEventActiveEditor:
		e.HandleActiveEditor(ctx, ev.ActiveEditor)
	case schema.HostEventDiagnostics:
		e.HandleDiagnostics(ctx, ev.Diagnostics)
	default:
		pslog.Ctx(ctx).Warn("engine unknown host event", "type", ev.Type)
	}
}

// Subscribe registers a consumer on one of the store's change channels.
func (e *Engine) Subscribe(channel schema.ChangeChannel) (<-chan schema.ChangeEvent, func()) {
	return e.store.Subscribe(channel)
}

// GetTab returns the tab with id.
func (e *Engine) GetTab(id schema.TabID) (schema.Tab, error) {
	tab, ok := e.store.GetTab(id)
	if !ok {
		return schema.Tab{}, schema.ErrTabNotFound
	}
	return tab, nil
}

// GetAllTabs returns every tab ordered by group and position.
func (e *Engine) GetAllTabs() []schema.Tab {
	return e.store.GetAllTabs()
}

// GetTabsInGroup returns a group's tabs in display order.
func (e *Engine) GetTabsInGroup(group schema.GroupID) []schema.Tab {
	return e.store.GetTabsInGroup(group)
}

// GetGroup returns one group.
func (e *Engine) GetGroup(id schema.GroupID) (schema.Group, error) {
	group, ok := e.store.GetGroup(id)
	if !ok {
		return schema.Group{}, schema.ErrGroupNotFound
	}
	return group, nil
}

// GetAllGroups returns every group ordered by column.
func (e *Engine) GetAllGroups() []schema.Group {
	return e.store.GetAllGroups()
}

// FindTabByURI returns the file-like tab showing uri. A zero group searches
// every group.
func (e *Engine) FindTabByURI(uri string, group schema.GroupID) (schema.Tab, error) {
	tab, ok := e.store.FindTabByURI(uri, group)
	if !ok {
		return schema.Tab{}, schema.ErrTabNotFound
	}
	return tab, nil
}

// Children returns the diff tabs attached to parentID.
func (e *Engine) Children(parentID schema.TabID) []schema.Tab {
	return e.hier.GetChildren(parentID)
}

// CanDrop reports whether a drop would be accepted.
func (e *Engine) CanDrop(sourceID, targetID schema.TabID, pos schema.DropPosition) bool {
	return e.drag.CanDrop(sourceID, targetID, pos)
}
