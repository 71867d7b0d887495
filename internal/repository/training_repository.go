package repository

import (
	"context"
	"time"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// TrainingRepository persists training bookings.
type TrainingRepository interface {
	Create(ctx context.Context, training *domain.Training) error
	SetCalendarEvent(ctx context.Context, id, eventID string) error
	// ListOverlapping returns bookings intersecting [from, to).
	ListOverlapping(ctx context.Context, from, to time.Time) ([]domain.Training, error)
}

type trainingRepository struct {
	db DBTX
}

// NewTrainingRepository builds repository.
func NewTrainingRepository(db DBTX) TrainingRepository {
	return &trainingRepository{db: db}
}

func (r *trainingRepository) Create(ctx context.Context, t *domain.Training) error {
	const query = `
        INSERT INTO trainings (id, start_time, end_time, entity_id, calendar_event_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query, t.ID, t.StartTime, t.EndTime, t.EntityID, t.CalendarEventID).Scan(&t.CreatedAt)
}

func (r *trainingRepository) SetCalendarEvent(ctx context.Context, id, eventID string) error {
	_, err := r.db.Exec(ctx, `UPDATE trainings SET calendar_event_id=$1 WHERE id=$2`, eventID, id)
	return err
}

func (r *trainingRepository) ListOverlapping(ctx context.Context, from, to time.Time) ([]domain.Training, error) {
	const query = `
        SELECT id, start_time, end_time, entity_id, calendar_event_id, created_at
        FROM trainings WHERE start_time < $2 AND end_time > $1
        ORDER BY start_time ASC`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Training
	for rows.Next() {
		var t domain.Training
		if err := rows.Scan(&t.ID, &t.StartTime, &t.EndTime, &t.EntityID, &t.CalendarEventID, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
