package domain

import "time"

// Training is a booked session for an ENTIDAD user.
type Training struct {
	ID              string
	StartTime       time.Time
	EndTime         time.Time
	EntityID        string
	CalendarEventID *string
	CreatedAt       time.Time

	Entity *User
}
