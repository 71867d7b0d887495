package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/service"
)

// StatsHandler exposes aggregate statistics.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{service: stats}
}

func statsFilter(c *fiber.Ctx) service.StatsFilter {
	return service.StatsFilter{
		City:     c.Query("city"),
		GestorID: c.Query("gestorId"),
		Status:   c.Query("status"),
	}
}

// Stats GET /api/stats.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	stats, applied, err := h.service.Stats(c.UserContext(), user, statsFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewStatsResponse(stats, applied))
}

// Report GET /api/stats/report.
func (h *StatsHandler) Report(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	body, err := h.service.Report(c.UserContext(), user, statsFilter(c))
	if err != nil {
		return err
	}
	return sendPDF(c, "estadisticas.pdf", body)
}
