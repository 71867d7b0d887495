// Package calendar talks to the external calendar that holds training sessions.
package calendar

import (
	"context"
	"time"

	"github.com/spec-kit/pqr-service/internal/availability"
)

// Event is a session to be placed on the calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar reads busy intervals and creates events.
type Calendar interface {
	Busy(ctx context.Context, from, to time.Time) ([]availability.Interval, error)
	CreateEvent(ctx context.Context, event Event) (string, error)
}

// Noop is used when no calendar is configured. It reports no busy time and
// creates no events.
type Noop struct{}

var _ Calendar = Noop{}

func (Noop) Busy(context.Context, time.Time, time.Time) ([]availability.Interval, error) {
	return nil, nil
}

func (Noop) CreateEvent(context.Context, Event) (string, error) {
	return "", nil
}
