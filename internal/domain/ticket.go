package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusInicial       TicketStatus = "INICIAL"
	TicketStatusEnSeguimiento TicketStatus = "EN_SEGUIMIENTO"
	TicketStatusFinalizado    TicketStatus = "FINALIZADO"
	// TicketStatusIniciado only appears on legacy rows. It is a distinct value from INICIAL.
	TicketStatusIniciado TicketStatus = "INICIADO"
)

// ParseTicketStatus accepts every stored status, legacy included.
func ParseTicketStatus(value string) (TicketStatus, error) {
	switch TicketStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case TicketStatusInicial:
		return TicketStatusInicial, nil
	case TicketStatusEnSeguimiento:
		return TicketStatusEnSeguimiento, nil
	case TicketStatusFinalizado:
		return TicketStatusFinalizado, nil
	case TicketStatusIniciado:
		return TicketStatusIniciado, nil
	default:
		return "", fmt.Errorf("unknown ticket status %q", value)
	}
}

// Writable reports whether the status may be set by a follow-up or status change.
func (s TicketStatus) Writable() bool {
	switch s {
	case TicketStatusInicial, TicketStatusEnSeguimiento, TicketStatusFinalizado:
		return true
	case TicketStatusIniciado:
		return false
	default:
		return false
	}
}

// Resolved reports whether the ticket counts as closed.
func (s TicketStatus) Resolved() bool {
	return s == TicketStatusFinalizado
}

// Status groups accepted by the statistics filter.
const (
	StatusGroupProceso = "PROCESO"
	StatusGroupCerrado = "CERRADO"
)

// StatusesForFilter expands a coarse status group into concrete statuses.
// Values that are not a group are matched exactly.
func StatusesForFilter(value string) []TicketStatus {
	value = strings.TrimSpace(value)
	switch strings.ToUpper(value) {
	case "":
		return nil
	case StatusGroupProceso:
		return []TicketStatus{TicketStatusIniciado, TicketStatusEnSeguimiento}
	case StatusGroupCerrado:
		return []TicketStatus{TicketStatusFinalizado}
	default:
		return []TicketStatus{TicketStatus(value)}
	}
}

// Ticket is a PQR case filed on behalf of a patient.
type Ticket struct {
	ID            string
	PatientName   string
	ContactMethod string
	City          string
	Phone         string
	Email         string
	Description   string
	Status        TicketStatus
	Revenue       decimal.Decimal
	AssignedToID  string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	AssignedTo *User
	FollowUps  []FollowUp
	Media      []Media
}

// OwnedBy reports whether the ticket is assigned to the user.
func (t *Ticket) OwnedBy(userID string) bool {
	return t != nil && t.AssignedToID == userID
}
