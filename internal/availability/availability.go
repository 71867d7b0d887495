// Package availability computes free training slots inside a fixed working day.
package availability

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses strict comparison, so touching intervals are free.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// Slot is a bookable candidate with a local-time label.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

// Calculator walks a working day in one-hour steps.
type Calculator struct {
	OpenHour  int
	CloseHour int
	Location  *time.Location
}

// NewCalculator builds a calculator. A nil location means UTC.
func NewCalculator(openHour, closeHour int, loc *time.Location) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return Calculator{OpenHour: openHour, CloseHour: closeHour, Location: loc}
}

// FixedZone returns a location with a constant UTC offset, in hours.
func FixedZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+03d:00", offsetHours), offsetHours*int(time.Hour/time.Second))
}

// WorkingHours is the length of the working day.
func (c Calculator) WorkingHours() int {
	return c.CloseHour - c.OpenHour
}

// ParseDate reads a YYYY-MM-DD date in the calculator's location.
func (c Calculator) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, c.Location)
}

// Day returns the open and close instants for the calendar date of date.
func (c Calculator) Day(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	open := time.Date(y, m, d, c.OpenHour, 0, 0, 0, c.Location)
	closing := time.Date(y, m, d, c.CloseHour, 0, 0, 0, c.Location)
	return open, closing
}

// Slots yields every [step, step+duration) candidate that fits before close
// and overlaps no busy interval. The sequence is recomputed on each range.
func (c Calculator) Slots(date time.Time, durationHours int, busy []Interval) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if durationHours <= 0 || durationHours > c.WorkingHours() {
			return
		}
		open, closing := c.Day(date)
		length := time.Duration(durationHours) * time.Hour
		for start := open; !start.Add(length).After(closing); start = start.Add(time.Hour) {
			end := start.Add(length)
			if overlapsAny(start, end, busy) {
				continue
			}
			if !yield(Slot{Start: start, End: end, Label: c.label(start, end)}) {
				return
			}
		}
	}
}

// Collect materializes Slots.
func (c Calculator) Collect(date time.Time, durationHours int, busy []Interval) []Slot {
	return slices.Collect(c.Slots(date, durationHours, busy))
}

// IsFree reports whether [start, end) lies inside the working day of start
// and overlaps no busy interval.
func (c Calculator) IsFree(start, end time.Time, busy []Interval) bool {
	if !start.Before(end) {
		return false
	}
	open, closing := c.Day(start.In(c.Location))
	if start.Before(open) || end.After(closing) {
		return false
	}
	return !overlapsAny(start, end, busy)
}

func (c Calculator) label(start, end time.Time) string {
	return start.In(c.Location).Format("15:04") + " - " + end.In(c.Location).Format("15:04")
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
