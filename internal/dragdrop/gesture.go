package dragdrop

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/sidetabs/schema"
)

// GestureState is the state of one drag gesture.
type GestureState string

const (
	GestureIdle      GestureState = "idle"
	GestureDragging  GestureState = "dragging"
	GestureCommitted GestureState = "committed"
	GestureCancelled GestureState = "cancelled"
)

// ErrGestureState indicates a transition that the current state does not allow.
var ErrGestureState = errors.New("invalid drag gesture transition")

// DropFunc receives the single request a committed gesture emits.
type DropFunc func(ctx context.Context, req schema.DropTabRequest) error

// Gesture tracks idle -> dragging -> committed|cancelled -> idle.
type Gesture struct {
	mu     sync.Mutex
	state  GestureState
	last   GestureState
	source schema.TabID
	drop   DropFunc
}

// NewGesture returns an idle gesture emitting drops to drop.
func NewGesture(drop DropFunc) *Gesture {
	return &Gesture{state: GestureIdle, last: GestureIdle, drop: drop}
}

// State returns the current state.
func (g *Gesture) State() GestureState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastOutcome returns how the previous gesture ended.
func (g *Gesture) LastOutcome() GestureState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Start begins dragging sourceID.
func (g *Gesture) Start(sourceID schema.TabID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GestureIdle || sourceID == "" {
		return ErrGestureState
	}
	g.state = GestureDragging
	g.source = sourceID
	return nil
}

// Commit ends the gesture with a drop and emits exactly one request.
func (g *Gesture) Commit(ctx context.Context, targetID schema.TabID, targetGroup schema.GroupID, pos schema.DropPosition) error {
	g.mu.Lock()
	if g.state != GestureDragging {
		g.mu.Unlock()
		return ErrGestureState
	}
	g.state = GestureCommitted
	req := schema.DropTabRequest{SourceID: g.source, TargetID: targetID, TargetGroup: targetGroup, Position: pos}
	drop := g.drop
	g.mu.Unlock()

	var err error
	if drop != nil {
		err = drop(ctx, req)
	}
	g.finish(GestureCommitted)
	return err
}

// Cancel ends the gesture without emitting anything.
func (g *Gesture) Cancel() error {
	g.mu.Lock()
	if g.state != GestureDragging {
		g.mu.Unlock()
		return ErrGestureState
	}
	g.state = GestureCancelled
	g.mu.Unlock()
	g.finish(GestureCancelled)
	return nil
}

func (g *Gesture) finish(outcome GestureState) {
	g.mu.Lock()
	g.last = outcome
	g.state = GestureIdle
	g.source = ""
	g.mu.Unlock()
}
