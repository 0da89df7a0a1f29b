package client

import (
	"sync"

	"github.com/gatewire/gatewire-go/pkg/wire"
)

// EventHandler receives inbound gateway events.
type EventHandler func(*wire.EventFrame)

// Broadcaster fans inbound event frames out to registered subscribers.
// Delivery order among subscribers matches registration order. A
// panicking handler is isolated: the remaining handlers still run.
type Broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

type subscriber struct {
	id      uint64
	handler EventHandler
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Broadcaster) Subscribe(handler EventHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every subscriber in registration order.
func (b *Broadcaster) Publish(ev *wire.EventFrame) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		deliver(s.handler, ev)
	}
}

// SubscriberCount returns the number of registered handlers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// deliver invokes one handler, swallowing panics so one bad subscriber
// cannot block the rest.
func deliver(handler EventHandler, ev *wire.EventFrame) {
	defer func() {
		_ = recover()
	}()
	handler(ev)
}
