package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/service"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const defaultTrainingRangeDays = 30

// TrainingsHandler serves availability and booking endpoints.
type TrainingsHandler struct {
	service *service.TrainingService
	now     func() time.Time
}

// NewTrainingsHandler constructs handler.
func NewTrainingsHandler(trainings *service.TrainingService) *TrainingsHandler {
	return &TrainingsHandler{service: trainings, now: time.Now}
}

// Availability GET /api/trainings/availability?date=YYYY-MM-DD&duration=N.
func (h *TrainingsHandler) Availability(c *fiber.Ctx) error {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		return apperrors.NewValidationError("La fecha es obligatoria", map[string]any{"field": "date"})
	}
	duration, err := queryInt(c, "duration", 1)
	if err != nil {
		return err
	}
	slots, err := h.service.Availability(c.UserContext(), date, duration)
	if err != nil {
		return err
	}
	return c.JSON(dto.AvailabilityResponse{
		Date:     date,
		Duration: duration,
		Slots:    dto.NewSlotResponses(slots),
	})
}

// Check GET /api/trainings/check?start=RFC3339&end=RFC3339.
func (h *TrainingsHandler) Check(c *fiber.Ctx) error {
	start, err := parseInstant(c, "start")
	if err != nil {
		return err
	}
	end, err := parseInstant(c, "end")
	if err != nil {
		return err
	}
	ok, err := h.service.Check(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(dto.CheckResponse{Available: ok})
}

// Book POST /api/trainings. The auth code in the body identifies the entity.
func (h *TrainingsHandler) Book(c *fiber.Ctx) error {
	var req dto.BookingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	training, err := h.service.Book(c.UserContext(), service.BookingInput{
		AuthCode: req.AuthCode,
		Start:    req.Start,
		End:      req.End,
		Date:     req.Date,
		Hour:     req.Hour,
		Duration: req.Duration,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTrainingResponse(training))
}

// List GET /api/trainings?from=YYYY-MM-DD&to=YYYY-MM-DD. Both bounds are
// inclusive days; the default range starts today.
func (h *TrainingsHandler) List(c *fiber.Ctx) error {
	calc := h.service.Calculator()
	y, m, d := h.now().In(calc.Location).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, calc.Location)
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		day, err := calc.ParseDate(raw)
		if err != nil {
			return apperrors.NewValidationError("Fecha inválida, use el formato AAAA-MM-DD", map[string]any{"field": "from"})
		}
		from = day
	}
	to := from.AddDate(0, 0, defaultTrainingRangeDays)
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		day, err := calc.ParseDate(raw)
		if err != nil {
			return apperrors.NewValidationError("Fecha inválida, use el formato AAAA-MM-DD", map[string]any{"field": "to"})
		}
		to = day.AddDate(0, 0, 1)
	}
	trainings, err := h.service.ListTrainings(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	items := make([]dto.TrainingResponse, 0, len(trainings))
	for i := range trainings {
		items = append(items, dto.NewTrainingResponse(&trainings[i]))
	}
	return c.JSON(fiber.Map{"items": items})
}

func parseInstant(c *fiber.Ctx, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("Fecha y hora inválidas, use RFC3339", map[string]any{"field": key})
	}
	return t, nil
}
