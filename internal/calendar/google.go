package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/spec-kit/pqr-service/internal/availability"
)

// Google is a Calendar backed by the Google Calendar v3 API.
type Google struct {
	events     *gcal.EventsService
	freebusy   *gcal.FreebusyService
	calendarID string
	timeout    time.Duration
}

var _ Calendar = (*Google)(nil)

// NewGoogle builds a client from a service account credentials file.
func NewGoogle(ctx context.Context, calendarID, credentialsFile string, timeout time.Duration) (*Google, error) {
	if strings.TrimSpace(calendarID) == "" {
		return nil, errors.New("calendar id is required")
	}
	svc, err := gcal.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Google{events: svc.Events, freebusy: svc.Freebusy, calendarID: calendarID, timeout: timeout}, nil
}

// Busy returns the busy periods of the configured calendar in [from, to).
func (g *Google) Busy(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy query: %s", cal.Errors[0].Reason)
	}
	return parsePeriods(cal.Busy)
}

// CreateEvent inserts the event and returns its id.
func (g *Google) CreateEvent(ctx context.Context, event Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.events.Insert(g.calendarID, &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func parsePeriods(periods []*gcal.TimePeriod) ([]availability.Interval, error) {
	out := make([]availability.Interval, 0, len(periods))
	for _, p := range periods {
		if p == nil {
			continue
		}
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("busy end %q: %w", p.End, err)
		}
		out = append(out, availability.Interval{Start: start, End: end})
	}
	return out, nil
}
