package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventFollowUpCreated     EventType = "follow_up_created"
	EventTrainingBooked      EventType = "training_booked"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticketId,omitempty"`
	ActorID   *string   `json:"actorId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, ticketID string, actorID *string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	PatientName  string `json:"patientName"`
	City         string `json:"city"`
	AssignedToID string `json:"assignedToId"`
	MediaCount   int    `json:"mediaCount"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssigneeID string `json:"previousAssigneeId"`
	AssigneeID         string `json:"assigneeId"`
}

// FollowUpCreatedPayload carries what the webhook receiver needs to notify the patient's gestor.
type FollowUpCreatedPayload struct {
	FollowUpID  string              `json:"followUpId"`
	PatientName string              `json:"patientName"`
	City        string              `json:"city"`
	Diagnosis   string              `json:"diagnosis"`
	Protocol    string              `json:"protocol,omitempty"`
	Status      domain.TicketStatus `json:"status"`
	MediaCount  int                 `json:"mediaCount"`
}

// TrainingBookedPayload payload.
type TrainingBookedPayload struct {
	TrainingID string    `json:"trainingId"`
	EntityID   string    `json:"entityId"`
	EntityName string    `json:"entityName"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}
