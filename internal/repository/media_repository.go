package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// MediaRepository persists media metadata. File bytes live in storage.
type MediaRepository interface {
	Create(ctx context.Context, media *domain.Media) error
	GetByID(ctx context.Context, id string) (*domain.Media, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Media, error)
}

type mediaRepository struct {
	db DBTX
}

// NewMediaRepository constructs repository.
func NewMediaRepository(db DBTX) MediaRepository {
	return &mediaRepository{db: db}
}

const mediaColumns = `id, ticket_id, follow_up_id, storage_key, file_name, mime_type, size_bytes, created_at`

func (r *mediaRepository) Create(ctx context.Context, m *domain.Media) error {
	const query = `
        INSERT INTO media (id, ticket_id, follow_up_id, storage_key, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		m.ID,
		m.TicketID,
		m.FollowUpID,
		m.StorageKey,
		m.FileName,
		m.MimeType,
		m.SizeBytes,
	).Scan(&m.CreatedAt)
}

func (r *mediaRepository) GetByID(ctx context.Context, id string) (*domain.Media, error) {
	return scanMedia(r.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id=$1`, id))
}

func (r *mediaRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Media, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mediaColumns+` FROM media WHERE ticket_id=$1 ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func scanMedia(row pgx.Row) (*domain.Media, error) {
	var m domain.Media
	if err := row.Scan(
		&m.ID,
		&m.TicketID,
		&m.FollowUpID,
		&m.StorageKey,
		&m.FileName,
		&m.MimeType,
		&m.SizeBytes,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
