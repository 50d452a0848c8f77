package event

import "sync"

// Handler processes an event. Handlers are called synchronously in
// subscription order; a slow handler delays subsequent handlers.
type Handler func(Event)

// Subscription represents an active event subscription.
// Use it to unsubscribe when no longer interested.
type Subscription struct {
	id        uint64
	eventType string // empty string means all events
}

// Bus is a synchronous publish-subscribe event bus.
// All methods are safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription // eventType -> subscriptions
	all      []subscription            // subscribers to all events
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns a Subscription that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	b.handlers[eventType] = append(b.handlers[eventType], sub)

	return Subscription{id: sub.id, eventType: eventType}
}

// SubscribeAll registers a handler that receives every published event.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	b.all = append(b.all, sub)

	return Subscription{id: sub.id}
}

// Unsubscribe removes a subscription. It is a no-op if the subscription
// is unknown or already removed.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.eventType == "" {
		b.all = removeSub(b.all, s.id)
		return
	}
	b.handlers[s.eventType] = removeSub(b.handlers[s.eventType], s.id)
}

func removeSub(subs []subscription, id uint64) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Publish delivers an event to all matching handlers synchronously.
// A panicking handler does not prevent delivery to the remaining handlers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	typed := make([]subscription, len(b.handlers[e.EventType()]))
	copy(typed, b.handlers[e.EventType()])
	all := make([]subscription, len(b.all))
	copy(all, b.all)
	b.mu.RUnlock()

	for _, sub := range typed {
		safeCall(sub.handler, e)
	}
	for _, sub := range all {
		safeCall(sub.handler, e)
	}
}

// safeCall invokes a handler, recovering from panics so one bad handler
// cannot take down the publisher.
func safeCall(h Handler, e Event) {
	// Delivery must continue for remaining handlers, so the panic is
	// swallowed here rather than propagated to the publisher.
	defer func() {
		_ = recover()
	}()
	h(e)
}
