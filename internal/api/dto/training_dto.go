package dto

import (
	"time"

	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/domain"
)

// SlotResponse is one free slot.
type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// AvailabilityResponse lists the free slots for a date.
type AvailabilityResponse struct {
	Date     string         `json:"date"`
	Duration int            `json:"duration"`
	Slots    []SlotResponse `json:"slots"`
}

// CheckResponse answers an interval check.
type CheckResponse struct {
	Available bool `json:"available"`
}

// BookingRequest accepts {authCode,start,end} or {authCode,date,hour,duration}.
type BookingRequest struct {
	AuthCode string     `json:"authCode"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
	Date     string     `json:"date"`
	Hour     *int       `json:"hour"`
	Duration int        `json:"duration"`
}

// TrainingResponse is a booked session.
type TrainingResponse struct {
	ID              string    `json:"id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	EntityID        string    `json:"entityId"`
	EntityName      string    `json:"entityName"`
	CalendarEventID *string   `json:"calendarEventId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewSlotResponses maps slots; never nil.
func NewSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End, Label: s.Label})
	}
	return out
}

// NewTrainingResponse maps a booking.
func NewTrainingResponse(t *domain.Training) TrainingResponse {
	return TrainingResponse{
		ID:              t.ID,
		Start:           t.StartTime,
		End:             t.EndTime,
		EntityID:        t.EntityID,
		EntityName:      t.Entity.DisplayName(),
		CalendarEventID: t.CalendarEventID,
		CreatedAt:       t.CreatedAt,
	}
}
