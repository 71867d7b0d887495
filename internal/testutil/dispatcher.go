package testutil

import (
	"context"
	"sync"

	"github.com/spec-kit/pqr-service/internal/events"
)

// Dispatcher records published events without delivering them.
type Dispatcher struct {
	mu     sync.Mutex
	events []events.Event
	// Err is returned by Publish when set.
	Err error
}

var _ events.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *Dispatcher) Subscribe(events.EventType, events.EventHandler) {}

// Published returns the recorded events of a type.
func (d *Dispatcher) Published(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
