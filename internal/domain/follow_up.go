package domain

import "time"

// FollowUp is an append-only progress entry on a ticket.
type FollowUp struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Content   string
	Diagnosis string
	Protocol  string
	BonusInfo string
	Status    TicketStatus
	CreatedAt time.Time

	Media []Media
}

// Media references a stored file attached to a ticket.
type Media struct {
	ID         string
	TicketID   string
	FollowUpID *string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
