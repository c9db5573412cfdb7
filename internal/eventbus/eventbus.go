// Package eventbus decouples the control pipeline from its observers.
// Pipeline stages publish state transitions, adaptations, corrections and
// optimization results; the metrics collector and tests subscribe.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event is any value published on the bus.
type Event interface{}

// EventBus is the publish/subscribe contract the pipeline depends on.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus fans events out to subscriber channels. Delivery never blocks: the
// control cycle has a hard deadline, so a slow subscriber loses events
// instead of stalling the pipeline. Lost events are counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[<-chan Event]chan Event
	closed  bool
	dropped atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: make(map[<-chan Event]chan Event)}
}

// Publish delivers e to every subscriber whose buffer has room.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a new subscriber. The returned channel is closed on
// Unsubscribe or Close.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown
// channels are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[sub]
	if !ok {
		return
	}
	delete(b.subs, sub)
	close(ch)
}

// Dropped reports how many events were lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
