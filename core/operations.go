package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"pkt.systems/sidetabs/internal/logx"
	"pkt.systems/sidetabs/schema"
)

// RunOperation attaches a named long-running operation to a tab and
// advances its progress from 0 to 100 in steps, pausing interval between
// steps. Progress is published on the tab-state channel. A cancelled
// operation stops advancing but keeps the progress already applied; that is
// not an error. Completion clears the operation from the tab.
func (e *Engine) RunOperation(ctx context.Context, tabID schema.TabID, name string, cancellable bool, steps int, interval time.Duration) error {
	if steps <= 0 || name == "" {
		return fmt.Errorf("run operation: %w", schema.ErrInvalidRequest)
	}
	if _, err := e.requireTab(tabID); err != nil {
		return err
	}
	cancelled, err := e.claimOperation(tabID)
	if err != nil {
		return err
	}
	defer e.releaseOperation(tabID, cancelled)

	log := logx.WithTab(ctx, tabID).With("operation", name)
	op := schema.Operation{Name: name, Cancellable: cancellable}
	if err := e.store.UpdateTabState(tabID, func(t *schema.Tab) { t.State.Operation = &op }); err != nil {
		return fmt.Errorf("run operation: %w", err)
	}
	log.Debug("operation started", "steps", steps)

	for step := 1; step <= steps; step++ {
		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				e.markCancelled(tabID)
				log.Debug("operation aborted", "err", ctx.Err())
				return ctx.Err()
			case <-timer.C:
			}
		}
		if cancelled.Load() {
			e.markCancelled(tabID)
			log.Info("operation cancelled", "step", step-1)
			return nil
		}
		progress := step * 100 / steps
		if err := e.store.UpdateTabState(tabID, func(t *schema.Tab) {
			if t.State.Operation != nil {
				t.State.Operation.Progress = progress
			}
		}); err != nil {
			log.Debug("operation tab vanished", "err", err)
			return fmt.Errorf("run operation: %w", err)
		}
		log.Trace("operation progress", "progress", progress)
	}
	_ = e.store.UpdateTabState(tabID, func(t *schema.Tab) { t.State.Operation = nil })
	log.Debug("operation completed")
	return nil
}

// CancelOperation asks the running operation of a tab to stop.
func (e *Engine) CancelOperation(tabID schema.TabID) error {
	tab, err := e.requireTab(tabID)
	if err != nil {
		return err
	}
	e.opsMu.Lock()
	flag := e.ops[tabID]
	e.opsMu.Unlock()
	if flag == nil || tab.State.Operation == nil {
		return fmt.Errorf("cancel operation: no operation on %s: %w", tabID, schema.ErrInvalidRequest)
	}
	if !tab.State.Operation.Cancellable {
		return schema.ErrNotCancellable
	}
	flag.Store(true)
	return nil
}

func (e *Engine) claimOperation(tabID schema.TabID) (*atomic.Bool, error) {
	e.opsMu.Lock()
	defer e.opsMu.Unlock()
	if _, busy := e.ops[tabID]; busy {
		return nil, schema.ErrOperationBusy
	}
	flag := new(atomic.Bool)
	e.ops[tabID] = flag
	return flag, nil
}

func (e *Engine) releaseOperation(tabID schema.TabID, flag *atomic.Bool) {
	e.opsMu.Lock()
	defer e.opsMu.Unlock()
	if e.ops[tabID] == flag {
		delete(e.ops, tabID)
	}
}

// dropOperation stops the operation of a tab that left the store.
func (e *Engine) dropOperation(tabID schema.TabID) {
	e.opsMu.Lock()
	defer e.opsMu.Unlock()
	if flag := e.ops[tabID]; flag != nil {
		flag.Store(true)
	}
}

func (e *Engine) markCancelled(tabID schema.TabID) {
	_ = e.store.UpdateTabState(tabID, func(t *schema.Tab) {
		if t.State.Operation != nil {
			t.State.Operation.Cancelled = true
		}
	})
}
