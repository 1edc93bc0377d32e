// Package events is the in-process pub/sub transport between the command
// sources (web, MQTT) and the live controllers.
//
// Publish never blocks and never runs handlers: messages are queued in
// publish order and delivered by Run on a single dispatcher goroutine, so
// a publisher may hold its own lock while publishing.
package events

import (
	"context"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
)

// Message is anything carried by the bus. Kind is the routing key.
type Message interface {
	Kind() string
}

// Handler receives one message.
type Handler func(Message)

type subscription struct {
	id   uint64
	kind string // empty = every kind
	fn   Handler
}

// Bus is an ordered, asynchronous message bus.
type Bus struct {
	mu     sync.Mutex
	queue  []Message
	wake   chan struct{}
	nextID uint64
	subs   []subscription

	deliverMu sync.Mutex // serializes Run and Drain
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// SubscribeKind registers fn for messages of kind. The returned function
// removes the subscription.
func (b *Bus) SubscribeKind(kind string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	return func() { b.unsubscribe(id) }
}

// SubscribeAll registers fn for every message.
func (b *Bus) SubscribeAll(fn Handler) func() {
	return b.SubscribeKind("", fn)
}

// Subscribe registers a typed handler for messages of type T.
func Subscribe[T Message](b *Bus, fn func(T)) func() {
	var zero T
	return b.SubscribeKind(zero.Kind(), func(m Message) {
		if v, ok := m.(T); ok {
			fn(v)
		}
	})
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish queues m for delivery.
func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued, undelivered messages.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Run delivers queued messages until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) {
	for {
		b.Drain()
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
	}
}

// Drain delivers every queued message, including those published by
// handlers during the drain, and returns how many were delivered.
func (b *Bus) Drain() int {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	n := 0
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return n
		}
		m := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		subs := make([]subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		b.deliver(m, subs)
		n++
	}
}

func (b *Bus) deliver(m Message, subs []subscription) {
	kind := m.Kind()
	for _, s := range subs {
		if s.kind != "" && s.kind != kind {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					debug.Errorf("event handler for %s panicked: %v", kind, r)
				}
			}()
			s.fn(m)
		}()
	}
}
