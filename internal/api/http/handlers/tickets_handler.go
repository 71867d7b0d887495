package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/service"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// TicketsHandler manages staff ticket endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	followUps *service.FollowUpService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, followUps *service.FollowUpService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, followUps: followUps}
}

// CreateTicket POST /api/tickets. Accepts JSON or multipart with up to three media files.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	uploads, closeUploads, err := readUploads(c)
	if err != nil {
		return err
	}
	defer closeUploads()

	ticket, err := h.tickets.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		PatientName:   req.PatientName,
		ContactMethod: req.ContactMethod,
		City:          req.City,
		Phone:         req.Phone,
		Email:         req.Email,
		Description:   req.Description,
	}, uploads)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "pageSize", 0)
	if err != nil {
		return err
	}
	p := service.Page{Page: page, PageSize: pageSize}.Normalize()
	tickets, err := h.tickets.ListTickets(c.UserContext(), user, service.TicketListFilter{
		Status: c.Query("status"),
		City:   c.Query("city"),
		Page:   p,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{Items: items, Page: p.Page, PageSize: p.PageSize})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// UpdateStatus PATCH /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), user, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// Assign PATCH /api/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	ticket, err := h.tickets.Reassign(c.UserContext(), user, c.Params("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// CreateFollowUp POST /api/tickets/:id/follow-ups.
func (h *TicketsHandler) CreateFollowUp(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateFollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	uploads, closeUploads, err := readUploads(c)
	if err != nil {
		return err
	}
	defer closeUploads()

	followUp, err := h.followUps.CreateFollowUp(c.UserContext(), user, c.Params("id"), service.FollowUpInput{
		Content:   req.Content,
		Diagnosis: req.Diagnosis,
		Protocol:  req.Protocol,
		BonusInfo: req.BonusInfo,
		Status:    req.Status,
	}, uploads)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewFollowUpResponse(followUp))
}

// Report GET /api/tickets/:id/report.
func (h *TicketsHandler) Report(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	body, err := h.tickets.TicketReport(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return sendPDF(c, "caso-"+id+".pdf", body)
}

// Media GET /api/media/:id.
func (h *TicketsHandler) Media(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	media, body, err := h.tickets.OpenMedia(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, media.MimeType)
	c.Set(fiber.HeaderContentDisposition, inlineDisposition(media.FileName))
	return c.SendStream(body, int(media.SizeBytes))
}
