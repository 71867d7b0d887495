package dto

import (
	"time"

	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/service"
)

// CreateTicketRequest payload. Accepted as JSON or multipart form fields.
type CreateTicketRequest struct {
	PatientName   string `json:"patientName" form:"patientName"`
	ContactMethod string `json:"contactMethod" form:"contactMethod"`
	City          string `json:"city" form:"city"`
	Phone         string `json:"phone" form:"phone"`
	Email         string `json:"email" form:"email"`
	Description   string `json:"description" form:"description"`
}

// CreateFollowUpRequest payload. Accepted as JSON or multipart form fields.
type CreateFollowUpRequest struct {
	Content   string `json:"content" form:"content"`
	Diagnosis string `json:"diagnosis" form:"diagnosis"`
	Protocol  string `json:"protocol" form:"protocol"`
	BonusInfo string `json:"bonusInfo" form:"bonusInfo"`
	Status    string `json:"status" form:"status"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	UserID string `json:"userId"`
}

// MediaResponse metadata.
type MediaResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// FollowUpResponse represents one follow-up.
type FollowUpResponse struct {
	ID        string              `json:"id"`
	TicketID  string              `json:"ticketId"`
	AuthorID  *string             `json:"authorId"`
	Content   string              `json:"content"`
	Diagnosis string              `json:"diagnosis"`
	Protocol  string              `json:"protocol"`
	BonusInfo string              `json:"bonusInfo"`
	Status    domain.TicketStatus `json:"status"`
	Media     []MediaResponse     `json:"media"`
	CreatedAt time.Time           `json:"createdAt"`
}

// TicketResponse is the staff view of a ticket.
type TicketResponse struct {
	ID            string              `json:"id"`
	PatientName   string              `json:"patientName"`
	ContactMethod string              `json:"contactMethod"`
	City          string              `json:"city"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	Description   string              `json:"description"`
	Status        domain.TicketStatus `json:"status"`
	Revenue       float64             `json:"revenue"`
	AssignedToID  string              `json:"assignedToId"`
	AssignedTo    *UserSummary        `json:"assignedTo"`
	Media         []MediaResponse     `json:"media"`
	FollowUps     []FollowUpResponse  `json:"followUps,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Items    []TicketResponse `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// PublicFollowUpResponse is a patient-visible timeline entry.
type PublicFollowUpResponse struct {
	Status    domain.TicketStatus `json:"status"`
	Content   string              `json:"content"`
	Diagnosis string              `json:"diagnosis"`
	CreatedAt time.Time           `json:"createdAt"`
}

// PublicTicketResponse is the privacy projection. It carries no contact data.
type PublicTicketResponse struct {
	Code        string                   `json:"code"`
	Status      domain.TicketStatus      `json:"status"`
	City        string                   `json:"city"`
	Description string                   `json:"description"`
	HandlerName string                   `json:"handlerName"`
	FollowUps   []PublicFollowUpResponse `json:"followUps"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// NewTicketResponse maps a ticket with whatever relations are loaded.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		PatientName:   t.PatientName,
		ContactMethod: t.ContactMethod,
		City:          t.City,
		Phone:         t.Phone,
		Email:         t.Email,
		Description:   t.Description,
		Status:        t.Status,
		Revenue:       t.Revenue.InexactFloat64(),
		AssignedToID:  t.AssignedToID,
		AssignedTo:    NewUserSummary(t.AssignedTo),
		Media:         NewMediaResponses(t.Media),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for i := range t.FollowUps {
		resp.FollowUps = append(resp.FollowUps, NewFollowUpResponse(&t.FollowUps[i]))
	}
	return resp
}

// NewFollowUpResponse maps a follow-up.
func NewFollowUpResponse(f *domain.FollowUp) FollowUpResponse {
	return FollowUpResponse{
		ID:        f.ID,
		TicketID:  f.TicketID,
		AuthorID:  f.AuthorID,
		Content:   f.Content,
		Diagnosis: f.Diagnosis,
		Protocol:  f.Protocol,
		BonusInfo: f.BonusInfo,
		Status:    f.Status,
		Media:     NewMediaResponses(f.Media),
		CreatedAt: f.CreatedAt,
	}
}

// NewMediaResponses maps attachments; never nil.
func NewMediaResponses(media []domain.Media) []MediaResponse {
	out := make([]MediaResponse, 0, len(media))
	for _, m := range media {
		out = append(out, MediaResponse{
			ID:        m.ID,
			FileName:  m.FileName,
			MimeType:  m.MimeType,
			SizeBytes: m.SizeBytes,
			URL:       "/api/media/" + m.ID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

// NewPublicTicketResponse maps the public projection.
func NewPublicTicketResponse(p *service.PublicTicket) PublicTicketResponse {
	resp := PublicTicketResponse{
		Code:        p.Code,
		Status:      p.Status,
		City:        p.City,
		Description: p.Description,
		HandlerName: p.HandlerName,
		FollowUps:   make([]PublicFollowUpResponse, 0, len(p.FollowUps)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, f := range p.FollowUps {
		resp.FollowUps = append(resp.FollowUps, PublicFollowUpResponse{
			Status:    f.Status,
			Content:   f.Content,
			Diagnosis: f.Diagnosis,
			CreatedAt: f.CreatedAt,
		})
	}
	return resp
}
