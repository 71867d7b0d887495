package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrQueueFull is returned when the delivery buffer has no room left.
	ErrQueueFull = errors.New("events: queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("events: dispatcher closed")
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// InMemoryDispatcher buffers events for asynchronous delivery. Publish never
// blocks the caller; a worker drains Events and calls Deliver.
type InMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	closed    bool
}

var _ Dispatcher = (*InMemoryDispatcher)(nil)

// NewInMemoryDispatcher creates a dispatcher with the given buffer size.
func NewInMemoryDispatcher(buffer int) *InMemoryDispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &InMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, buffer),
	}
}

// Publish enqueues the event. It returns ErrQueueFull instead of waiting.
func (d *InMemoryDispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe registers a handler for the given event type.
func (d *InMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Events exposes the delivery queue. It is closed by Close.
func (d *InMemoryDispatcher) Events() <-chan Event {
	return d.queue
}

// Deliver runs every handler subscribed to the event type. All handlers run
// even when one fails; the failures are joined.
func (d *InMemoryDispatcher) Deliver(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and closes the queue so workers drain and exit.
func (d *InMemoryDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}
