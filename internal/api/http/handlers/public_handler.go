package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/service"
)

// PublicHandler serves the unauthenticated case lookup.
type PublicHandler struct {
	tickets *service.TicketService
}

// NewPublicHandler constructs handler.
func NewPublicHandler(tickets *service.TicketService) *PublicHandler {
	return &PublicHandler{tickets: tickets}
}

// Lookup GET /api/public/tickets/:code.
func (h *PublicHandler) Lookup(c *fiber.Ctx) error {
	ticket, err := h.tickets.PublicLookup(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPublicTicketResponse(ticket))
}
