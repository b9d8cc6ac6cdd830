package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

// Bus fans store change events out to per-channel subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ChangeChannel]map[chan schema.ChangeEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ChangeChannel]map[chan schema.ChangeEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for one channel and returns a channel + cancel.
func (b *Bus) Subscribe(channel schema.ChangeChannel) (<-chan schema.ChangeEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ChangeEvent, b.depth)
	b.mu.Lock()
	channelSubs := b.subs[channel]
	if channelSubs == nil {
		channelSubs = make(map[chan schema.ChangeEvent]struct{})
		b.subs[channel] = channelSubs
	}
	channelSubs[ch] = struct{}{}
	count := len(channelSubs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "channel", channel, "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[channel]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, channel)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.Debug("eventbus unsubscribe", "channel", channel)
		})
	}
}

// Structural publishes a change that requires consumers to rebuild.
func (b *Bus) Structural(kind schema.ChangeKind, tabID schema.TabID, groupID schema.GroupID) {
	b.publish(schema.ChangeEvent{Channel: schema.ChannelStructural, Kind: kind, TabID: tabID, GroupID: groupID})
}

// Silent publishes an active/preview-only change.
func (b *Bus) Silent(tabID schema.TabID, groupID schema.GroupID) {
	b.publish(schema.ChangeEvent{Channel: schema.ChannelSilent, Kind: schema.ChangeTabUpdated, TabID: tabID, GroupID: groupID})
}

// TabState publishes a decoration-only change of a single tab.
func (b *Bus) TabState(tabID schema.TabID, groupID schema.GroupID) {
	b.publish(schema.ChangeEvent{Channel: schema.ChannelTabState, Kind: schema.ChangeTabUpdated, TabID: tabID, GroupID: groupID})
}

func (b *Bus) publish(event schema.ChangeEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	channelSubs := b.subs[event.Channel]
	subs := make([]chan schema.ChangeEvent, 0, len(channelSubs))
	for sub := range channelSubs {
		subs = append(subs, sub)
	}
	// Sends happen under the lock so a concurrent cancel cannot close a
	// channel mid-send; sends never block.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "channel", event.Channel, "count", dropped)
	}
}
