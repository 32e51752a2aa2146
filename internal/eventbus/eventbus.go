// ABOUTME: Typed event bus for connection-state and editor events
// ABOUTME: Goroutine-safe subscribe/unsubscribe; remembers the last event for late subscribers

package eventbus

import "sync"

// Handler is a callback function for events.
type Handler[T any] func(T)

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[int]Handler[T]
	nextID   int
	last     T
	hasLast  bool
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[int]Handler[T]),
	}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// SubscribeChan delivers events into a buffered channel. Events are dropped
// when the channel is full so a slow reader never stalls the publisher.
func (b *Bus[T]) SubscribeChan(size int) (<-chan T, func()) {
	ch := make(chan T, size)
	unsub := b.Subscribe(func(ev T) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, unsub
}

// Publish sends an event to all registered handlers.
// Handlers are called synchronously in arbitrary order.
func (b *Bus[T]) Publish(event T) {
	b.mu.Lock()
	b.last = event
	b.hasLast = true
	snapshot := make([]Handler[T], 0, len(b.handlers))
	for _, h := range b.handlers {
		snapshot = append(snapshot, h)
	}
	b.mu.Unlock()

	for _, h := range snapshot {
		h(event)
	}
}

// Last returns the most recently published event, if any.
func (b *Bus[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.hasLast
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
