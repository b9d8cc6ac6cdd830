package hostsim

import (
	"context"

	"pkt.systems/sidetabs/schema"
)

// TakeEvents removes and returns every queued notification in order.
func (h *Host) TakeEvents() []schema.HostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.queue
	h.queue = nil
	return out
}

// Pending reports how many notifications are queued.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Events streams queued notifications until ctx is done. The returned
// channel is closed when the stream stops.
func (h *Host) Events(ctx context.Context) <-chan schema.HostEvent {
	out := make(chan schema.HostEvent)
	go func() {
		defer close(out)
		for {
			for _, ev := range h.TakeEvents() {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-h.notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Handler applies one host notification.
type Handler interface {
	HandleEvent(ctx context.Context, ev schema.HostEvent)
}

// Drain applies queued notifications until none are left, including the
// ones raised while handling earlier notifications. It returns the number
// of notifications applied.
func Drain(ctx context.Context, h *Host, handler Handler) int {
	applied := 0
	for {
		events := h.TakeEvents()
		if len(events) == 0 {
			return applied
		}
		for _, ev := range events {
			handler.HandleEvent(ctx, ev)
			applied++
		}
	}
}
