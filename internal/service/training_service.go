package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/calendar"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/events"
	"github.com/spec-kit/pqr-service/internal/repository"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// BookingInput accepts either an explicit Start/End pair or Date+Hour+Duration.
type BookingInput struct {
	AuthCode string
	Start    *time.Time
	End      *time.Time
	Date     string
	Hour     *int
	Duration int
}

// TrainingService computes availability and books training sessions.
type TrainingService struct {
	trainings  repository.TrainingRepository
	users      repository.UserRepository
	calendar   calendar.Calendar
	cache      *calendar.BusyCache
	calc       availability.Calculator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TrainingDependencies bundles collaborators for the training service.
type TrainingDependencies struct {
	TrainingRepo repository.TrainingRepository
	UserRepo     repository.UserRepository
	Calendar     calendar.Calendar
	BusyCache    *calendar.BusyCache
	Calculator   availability.Calculator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewTrainingService builds the service.
func NewTrainingService(deps TrainingDependencies) *TrainingService {
	cal := deps.Calendar
	if cal == nil {
		cal = calendar.Noop{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TrainingService{
		trainings:  deps.TrainingRepo,
		users:      deps.UserRepo,
		calendar:   cal,
		cache:      deps.BusyCache,
		calc:       deps.Calculator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// Availability lists free slots for a date. Degenerate durations yield no slots.
func (s *TrainingService) Availability(ctx context.Context, date string, durationHours int) ([]availability.Slot, error) {
	day, err := s.calc.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return nil, apperrors.NewValidationError("Fecha inválida, use el formato AAAA-MM-DD", map[string]any{"field": "date"})
	}
	if durationHours <= 0 || durationHours > s.calc.WorkingHours() {
		return []availability.Slot{}, nil
	}
	busy, err := s.busy(ctx, day, true)
	if err != nil {
		return nil, err
	}
	return s.calc.Collect(day, durationHours, busy), nil
}

// Check reports whether [start, end) is bookable right now.
func (s *TrainingService) Check(ctx context.Context, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, apperrors.NewValidationError("La hora de inicio debe ser anterior a la hora de fin", nil)
	}
	busy, err := s.busy(ctx, start.In(s.calc.Location), false)
	if err != nil {
		return false, err
	}
	return s.calc.IsFree(start, end, busy), nil
}

// Book creates a training for the ENTIDAD that owns the auth code. The
// interval the caller read from the availability endpoints is rechecked
// against freshly fetched busy data right before the insert; only that fresh
// check can reject the booking. Concurrent bookings can still race.
func (s *TrainingService) Book(ctx context.Context, input BookingInput) (*domain.Training, error) {
	code := strings.TrimSpace(input.AuthCode)
	if code == "" {
		return nil, apperrors.NewValidationError("El código de autorización es obligatorio", map[string]any{"field": "authCode"})
	}
	start, end, err := s.resolveInterval(input)
	if err != nil {
		return nil, err
	}

	entity, err := s.users.GetByAuthCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidAuthCode()
		}
		return nil, err
	}
	if entity.Role != domain.RoleEntidad {
		return nil, errInvalidAuthCode()
	}

	if start.Before(s.now()) {
		return nil, apperrors.NewValidationError("No es posible agendar en una fecha pasada", nil)
	}

	day := start.In(s.calc.Location)
	busy, err := s.busy(ctx, day, false)
	if err != nil {
		return nil, err
	}
	if !s.calc.IsFree(start, end, busy) {
		return nil, apperrors.NewConflict("El horario seleccionado no está disponible", map[string]any{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		})
	}

	training := &domain.Training{
		ID:        uuid.NewString(),
		StartTime: start,
		EndTime:   end,
		EntityID:  entity.ID,
	}
	if err := s.trainings.Create(ctx, training); err != nil {
		return nil, err
	}
	training.Entity = entity

	s.linkCalendarEvent(ctx, training)
	s.invalidate(ctx, day)

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTrainingBooked, "", &entity.ID, events.TrainingBookedPayload{
		TrainingID: training.ID,
		EntityID:   entity.ID,
		EntityName: entity.DisplayName(),
		Start:      start,
		End:        end,
	}))
	return training, nil
}

// ListTrainings returns bookings in [from, to) with their entity.
func (s *TrainingService) ListTrainings(ctx context.Context, from, to time.Time) ([]domain.Training, error) {
	if !from.Before(to) {
		return nil, apperrors.NewValidationError("Rango de fechas inválido", nil)
	}
	trainings, err := s.trainings.ListOverlapping(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for i := range trainings {
		entity, err := s.users.GetByID(ctx, trainings[i].EntityID)
		if err == nil {
			trainings[i].Entity = entity
		} else if !repository.IsNotFound(err) {
			return nil, err
		}
	}
	return trainings, nil
}

// Calculator exposes the working-day rules.
func (s *TrainingService) Calculator() availability.Calculator {
	return s.calc
}

// linkCalendarEvent never fails the booking: a calendar error leaves it unlinked.
func (s *TrainingService) linkCalendarEvent(ctx context.Context, training *domain.Training) {
	eventID, err := s.calendar.CreateEvent(ctx, calendar.Event{
		Summary:     "Capacitación: " + training.Entity.DisplayName(),
		Description: fmt.Sprintf("Reserva %s", training.ID),
		Start:       training.StartTime,
		End:         training.EndTime,
	})
	if err != nil {
		s.logger.Error("calendar event creation failed", zap.String("training_id", training.ID), zap.Error(err))
		return
	}
	if eventID == "" {
		return
	}
	if err := s.trainings.SetCalendarEvent(ctx, training.ID, eventID); err != nil {
		s.logger.Error("failed to link calendar event", zap.String("training_id", training.ID), zap.String("event_id", eventID), zap.Error(err))
		return
	}
	training.CalendarEventID = &eventID
}

// busy merges calendar busy periods with bookings already stored for the day.
// The cached path reads the day's generation before fetching, so a snapshot
// that raced with a booking is written under a generation nobody reads.
// The fresh path neither reads nor writes the cache.
func (s *TrainingService) busy(ctx context.Context, day time.Time, useCache bool) ([]availability.Interval, error) {
	key := day.Format(time.DateOnly)
	var generation int64
	if useCache {
		gen, err := s.cache.Generation(ctx, key)
		if err != nil {
			s.logger.Warn("busy cache generation read failed", zap.String("day", key), zap.Error(err))
			useCache = false
		} else {
			generation = gen
			cached, hit, err := s.cache.Get(ctx, key, generation)
			if err != nil {
				s.logger.Warn("busy cache read failed", zap.String("day", key), zap.Error(err))
			} else if hit {
				return cached, nil
			}
		}
	}

	open, closing := s.calc.Day(day)
	busy, err := s.calendar.Busy(ctx, open, closing)
	if err != nil {
		return nil, fmt.Errorf("calendar busy lookup: %w", err)
	}
	booked, err := s.trainings.ListOverlapping(ctx, open, closing)
	if err != nil {
		return nil, err
	}
	for _, t := range booked {
		busy = append(busy, availability.Interval{Start: t.StartTime, End: t.EndTime})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	if useCache {
		if err := s.cache.Set(ctx, key, generation, busy); err != nil {
			s.logger.Warn("busy cache write failed", zap.String("day", key), zap.Error(err))
		}
	}
	return busy, nil
}

func (s *TrainingService) invalidate(ctx context.Context, day time.Time) {
	key := day.Format(time.DateOnly)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("busy cache invalidation failed", zap.String("day", key), zap.Error(err))
	}
}

func (s *TrainingService) resolveInterval(input BookingInput) (time.Time, time.Time, error) {
	if input.Start != nil && input.End != nil {
		if !input.Start.Before(*input.End) {
			return time.Time{}, time.Time{}, apperrors.NewValidationError("La hora de inicio debe ser anterior a la hora de fin", nil)
		}
		return *input.Start, *input.End, nil
	}
	if strings.TrimSpace(input.Date) == "" || input.Hour == nil || input.Duration <= 0 {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("Debe indicar inicio y fin, o fecha, hora y duración", nil)
	}
	day, err := s.calc.ParseDate(strings.TrimSpace(input.Date))
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("Fecha inválida, use el formato AAAA-MM-DD", map[string]any{"field": "date"})
	}
	if *input.Hour < 0 || *input.Hour > 23 {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("Hora inválida", map[string]any{"field": "hour"})
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, *input.Hour, 0, 0, 0, s.calc.Location)
	return start, start.Add(time.Duration(input.Duration) * time.Hour), nil
}

func errInvalidAuthCode() error {
	return apperrors.NewForbidden("Código de autorización inválido")
}
