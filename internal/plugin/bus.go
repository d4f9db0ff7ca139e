package plugin

import "sync"

// EventHandler handles an event payload.
type EventHandler func(payload any)

// handlerSlot wraps a subscribed handler so unsubscription can nil it out
// in place without shifting later subscribers.
type handlerSlot struct {
	fn EventHandler
}

// Bus is a synchronous publish/subscribe event channel. Each plugin scope
// owns one, and the lifecycle manager constructs a single shared bus for
// cross-plugin signaling.
//
// Delivery is synchronous, in subscription order. A panic in one handler is
// recovered per-handler and never prevents delivery to subsequent handlers.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*handlerSlot
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]*handlerSlot),
	}
}

// On subscribes a handler to an event name and returns an unsubscribe
// function. Unsubscribing is idempotent; calling the returned function
// twice has no additional effect. A nil handler returns a no-op
// unsubscribe.
func (b *Bus) On(event string, handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	slot := &handlerSlot{fn: handler}

	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], slot)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		slot.fn = nil
	}
}

// Emit delivers payload synchronously to every handler currently
// subscribed to event, in subscription order. Handler panics are recovered
// individually so one faulty handler cannot block the rest.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	slots := make([]*handlerSlot, len(b.handlers[event]))
	copy(slots, b.handlers[event])
	b.mu.Unlock()

	for _, slot := range slots {
		fn := slot.fn
		if fn == nil {
			continue
		}
		func() {
			defer func() {
				recover() // One bad handler must not break delivery.
			}()
			fn(payload)
		}()
	}
}

// HandlerCount returns the number of live subscriptions for an event.
func (b *Bus) HandlerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, slot := range b.handlers[event] {
		if slot.fn != nil {
			count++
		}
	}
	return count
}

// Clear drops every subscription on the bus.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]*handlerSlot)
}
