package repository

import (
	"context"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// FollowUpRepository stores the append-only follow-up log.
type FollowUpRepository interface {
	Create(ctx context.Context, followUp *domain.FollowUp) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FollowUp, error)
}

type followUpRepository struct {
	db DBTX
}

// NewFollowUpRepository builds repository.
func NewFollowUpRepository(db DBTX) FollowUpRepository {
	return &followUpRepository{db: db}
}

func (r *followUpRepository) Create(ctx context.Context, f *domain.FollowUp) error {
	const query = `
        INSERT INTO follow_ups (id, ticket_id, author_id, content, diagnosis, protocol, bonus_info, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		f.ID,
		f.TicketID,
		f.AuthorID,
		f.Content,
		f.Diagnosis,
		f.Protocol,
		f.BonusInfo,
		f.Status,
	).Scan(&f.CreatedAt)
}

func (r *followUpRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FollowUp, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, diagnosis, protocol, bonus_info, status, created_at
        FROM follow_ups WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FollowUp
	for rows.Next() {
		var f domain.FollowUp
		if err := rows.Scan(
			&f.ID,
			&f.TicketID,
			&f.AuthorID,
			&f.Content,
			&f.Diagnosis,
			&f.Protocol,
			&f.BonusInfo,
			&f.Status,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
