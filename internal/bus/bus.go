// Package bus is the process-wide publish/subscribe channel that ties the
// estimator pages together.
//
// Delivery is synchronous on the publisher's goroutine. A handler that
// panics is recovered and logged; the remaining handlers still run and the
// publisher never sees the failure.
//
// Writes made by other processes sharing the same store arrive through a
// Feed attached with Attach. They are delivered to the same subscribers as
// local events, so a subscriber does not need to know where an event came
// from. Events delivered by a feed run on the feed's goroutine.
package bus

import (
	"context"
	"sync"

	"github.com/julianstephens/estimator/internal/logger"
)

// Event is one notification
type Event struct {
	Name   string
	Detail any
	Remote bool
}

// Handler receives events
type Handler func(Event)

// StorageChange is the detail of a storage event.
type StorageChange struct {
	Key     string
	Deleted bool
}

// Feed delivers events that originate outside this process. Run blocks
// until ctx is cancelled or the feed fails.
type Feed interface {
	Run(ctx context.Context, deliver func(Event)) error
}

type subscription struct {
	id      uint64
	handler Handler
}

type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	all  []subscription
	next uint64
	wg   sync.WaitGroup
}

func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers h for events named name. The returned func removes it.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[name] = remove(b.subs[name], id)
	}
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.all = append(b.all, subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers a local event to every subscriber before returning.
func (b *Bus) Publish(name string, detail any) {
	b.Deliver(Event{Name: name, Detail: detail})
}

// Deliver dispatches ev as-is. Feeds use it to inject remote events.
func (b *Bus) Deliver(ev Event) {
	b.mu.RLock()
	handlers := make([]subscription, 0, len(b.subs[ev.Name])+len(b.all))
	handlers = append(handlers, b.subs[ev.Name]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, s := range handlers {
		b.call(s.handler, ev)
	}
}

func (b *Bus) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked", "event", ev.Name, "remote", ev.Remote, "panic", r)
		}
	}()
	h(ev)
}

// Attach runs feed in the background until ctx is done. Events it produces
// are marked Remote and delivered to subscribers.
func (b *Bus) Attach(ctx context.Context, feed Feed) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := feed.Run(ctx, func(ev Event) {
			ev.Remote = true
			b.Deliver(ev)
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("Change feed stopped", "error", err)
		}
	}()
}

// Wait blocks until every attached feed has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
