package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// TicketFilter narrows ticket listings and statistics.
type TicketFilter struct {
	AssignedToID *string
	City         *string
	Statuses     []domain.TicketStatus
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// FindByCodes returns the first ticket whose id equals any of codes.
	FindByCodes(ctx context.Context, codes []string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, filter TicketFilter) (*domain.TicketStats, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, patient_name, contact_method, city, phone, email, description, status,
               revenue, assigned_to_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, patient_name, contact_method, city, phone, email, description, status, revenue, assigned_to_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.PatientName,
		ticket.ContactMethod,
		ticket.City,
		ticket.Phone,
		ticket.Email,
		ticket.Description,
		ticket.Status,
		ticket.Revenue,
		ticket.AssignedToID,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET patient_name=$1, contact_method=$2, city=$3, phone=$4, email=$5,
            description=$6, status=$7, assigned_to_id=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.PatientName,
		ticket.ContactMethod,
		ticket.City,
		ticket.Phone,
		ticket.Email,
		ticket.Description,
		ticket.Status,
		ticket.AssignedToID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *ticketRepository) FindByCodes(ctx context.Context, codes []string) (*domain.Ticket, error) {
	if len(codes) == 0 {
		return nil, pgx.ErrNoRows
	}
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1::text[]) ORDER BY array_position($1::text[], id) LIMIT 1`
	return scanTicket(r.db.QueryRow(ctx, query, codes))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// Stats computes every aggregate over the same filtered set in one statement.
func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter) (*domain.TicketStats, error) {
	where, args := buildTicketWhere(filter)
	args = append(args, domain.TicketStatusFinalizado)
	resolvedArg := len(args)

	query := fmt.Sprintf(`
        WITH filtered AS (SELECT city, status, revenue FROM tickets WHERE %s)
        SELECT
            (SELECT COUNT(*) FROM filtered),
            (SELECT COUNT(*) FROM filtered WHERE status = $%d),
            (SELECT COALESCE(SUM(revenue), 0) FROM filtered),
            city,
            COUNT(*)
        FROM filtered
        GROUP BY city
        ORDER BY COUNT(*) DESC, city ASC`, where, resolvedArg)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tickets.Stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.TicketStats{Revenue: decimal.Zero, ByCity: []domain.CityCount{}}
	for rows.Next() {
		var cc domain.CityCount
		if err := rows.Scan(&stats.Total, &stats.Resolved, &stats.Revenue, &cc.City, &cc.Count); err != nil {
			return nil, fmt.Errorf("tickets.Stats scan: %w", err)
		}
		stats.ByCity = append(stats.ByCity, cc)
	}
	return stats, rows.Err()
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if filter.City != nil && strings.TrimSpace(*filter.City) != "" {
		args = append(args, strings.TrimSpace(*filter.City))
		clauses = append(clauses, fmt.Sprintf("LOWER(city)=LOWER($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.PatientName,
		&ticket.ContactMethod,
		&ticket.City,
		&ticket.Phone,
		&ticket.Email,
		&ticket.Description,
		&ticket.Status,
		&ticket.Revenue,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
