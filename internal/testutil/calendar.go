package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/calendar"
)

// Calendar is a scripted calendar.Calendar.
type Calendar struct {
	mu sync.Mutex
	// BusySeq is returned call by call; the last entry repeats.
	BusySeq   [][]availability.Interval
	BusyErr   error
	CreateErr error
	EventID   string
	Created   []calendar.Event
	BusyCalls int
}

var _ calendar.Calendar = (*Calendar)(nil)

func (c *Calendar) Busy(_ context.Context, from, to time.Time) ([]availability.Interval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BusyCalls++
	if c.BusyErr != nil {
		return nil, c.BusyErr
	}
	if len(c.BusySeq) == 0 {
		return nil, nil
	}
	idx := min(c.BusyCalls-1, len(c.BusySeq)-1)
	var out []availability.Interval
	for _, b := range c.BusySeq[idx] {
		if b.Start.Before(to) && b.End.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *Calendar) CreateEvent(_ context.Context, event calendar.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return "", c.CreateErr
	}
	c.Created = append(c.Created, event)
	return c.EventID, nil
}
