// Package testutil provides in-memory repositories for service and handler tests.
package testutil

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/repository"
)

// UniqueViolation mimics the error Postgres returns for duplicate keys.
func UniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// Store bundles every in-memory repository.
type Store struct {
	Users     *UserRepo
	Tickets   *TicketRepo
	FollowUps *FollowUpRepo
	Media     *MediaRepo
	Trainings *TrainingRepo
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		Users:     &UserRepo{byID: map[string]domain.User{}},
		Tickets:   &TicketRepo{byID: map[string]domain.Ticket{}},
		FollowUps: &FollowUpRepo{},
		Media:     &MediaRepo{byID: map[string]domain.Media{}},
		Trainings: &TrainingRepo{},
	}
}

// Transactor runs callbacks against the same in-memory repositories.
func (s *Store) Transactor() repository.Transactor {
	return txRunner{store: s}
}

type txRunner struct {
	store *Store
}

func (t txRunner) WithinTx(_ context.Context, fn func(repository.TxRepositories) error) error {
	return fn(repository.TxRepositories{
		Tickets:   t.store.Tickets,
		FollowUps: t.store.FollowUps,
		Media:     t.store.Media,
	})
}

// UserRepo is an in-memory repository.UserRepository.
type UserRepo struct {
	mu   sync.Mutex
	byID map[string]domain.User
}

var _ repository.UserRepository = (*UserRepo)(nil)

// Add stores a user as-is.
func (r *UserRepo) Add(user domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = user
	return &user
}

// Delete removes a user, simulating an out-of-band deletion.
func (r *UserRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Username, user.Username) {
			return UniqueViolation()
		}
		if user.AuthCode != nil && existing.AuthCode != nil && *existing.AuthCode == *user.AuthCode {
			return UniqueViolation()
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = *user
	return nil
}

func (r *UserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.byID {
		if id != user.ID && strings.EqualFold(existing.Username, user.Username) {
			return UniqueViolation()
		}
	}
	user.UpdatedAt = time.Now()
	r.byID[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if strings.EqualFold(user.Username, username) {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *UserRepo) GetByAuthCode(_ context.Context, code string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if user.AuthCode != nil && *user.AuthCode == code {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *UserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.byID))
	for _, user := range r.byID {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

// TicketRepo is an in-memory repository.TicketRepository.
type TicketRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Ticket
	// CreateErrs are returned, in order, by the next Create calls.
	CreateErrs []error
}

var _ repository.TicketRepository = (*TicketRepo)(nil)

// Add stores a ticket as-is.
func (r *TicketRepo) Add(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ticket.ID] = ticket
}

// Len reports how many tickets are stored.
func (r *TicketRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *TicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.CreateErrs) > 0 {
		err := r.CreateErrs[0]
		r.CreateErrs = r.CreateErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := r.byID[ticket.ID]; exists {
		return UniqueViolation()
	}
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.byID[ticket.ID] = stripTicket(*ticket)
	return nil
}

func (r *TicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.byID[ticket.ID] = stripTicket(*ticket)
	return nil
}

func (r *TicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *TicketRepo) FindByCodes(_ context.Context, codes []string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range codes {
		if ticket, ok := r.byID[code]; ok {
			return &ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *TicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filtered(filter)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (r *TicketRepo) Stats(_ context.Context, filter repository.TicketFilter) (*domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.TicketStats{Revenue: decimal.Zero, ByCity: []domain.CityCount{}}
	perCity := map[string]int64{}
	for _, t := range r.filtered(filter) {
		stats.Total++
		if t.Status == domain.TicketStatusFinalizado {
			stats.Resolved++
		}
		stats.Revenue = stats.Revenue.Add(t.Revenue)
		perCity[t.City]++
	}
	for city, count := range perCity {
		stats.ByCity = append(stats.ByCity, domain.CityCount{City: city, Count: count})
	}
	sort.Slice(stats.ByCity, func(i, j int) bool {
		if stats.ByCity[i].Count != stats.ByCity[j].Count {
			return stats.ByCity[i].Count > stats.ByCity[j].Count
		}
		return stats.ByCity[i].City < stats.ByCity[j].City
	})
	return stats, nil
}

func (r *TicketRepo) filtered(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.byID {
		if filter.AssignedToID != nil && t.AssignedToID != *filter.AssignedToID {
			continue
		}
		if filter.City != nil && strings.TrimSpace(*filter.City) != "" && !strings.EqualFold(t.City, strings.TrimSpace(*filter.City)) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func stripTicket(t domain.Ticket) domain.Ticket {
	t.AssignedTo = nil
	t.FollowUps = nil
	t.Media = nil
	return t
}

// FollowUpRepo is an in-memory repository.FollowUpRepository.
type FollowUpRepo struct {
	mu    sync.Mutex
	items []domain.FollowUp
}

var _ repository.FollowUpRepository = (*FollowUpRepo)(nil)

// All returns every stored follow-up.
func (r *FollowUpRepo) All() []domain.FollowUp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func (r *FollowUpRepo) Create(_ context.Context, f *domain.FollowUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.CreatedAt = time.Now()
	stored := *f
	stored.Media = nil
	r.items = append(r.items, stored)
	return nil
}

func (r *FollowUpRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FollowUp
	for _, f := range r.items {
		if f.TicketID == ticketID {
			out = append(out, f)
		}
	}
	return out, nil
}

// MediaRepo is an in-memory repository.MediaRepository.
type MediaRepo struct {
	mu    sync.Mutex
	byID  map[string]domain.Media
	order []string
}

var _ repository.MediaRepository = (*MediaRepo)(nil)

func (r *MediaRepo) Create(_ context.Context, m *domain.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.CreatedAt = time.Now()
	r.byID[m.ID] = *m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *MediaRepo) GetByID(_ context.Context, id string) (*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (r *MediaRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Media
	for _, id := range r.order {
		if m := r.byID[id]; m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

// TrainingRepo is an in-memory repository.TrainingRepository.
type TrainingRepo struct {
	mu    sync.Mutex
	items []domain.Training
}

var _ repository.TrainingRepository = (*TrainingRepo)(nil)

// All returns every stored booking.
func (r *TrainingRepo) All() []domain.Training {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func (r *TrainingRepo) Create(_ context.Context, t *domain.Training) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.CreatedAt = time.Now()
	stored := *t
	stored.Entity = nil
	r.items = append(r.items, stored)
	return nil
}

func (r *TrainingRepo) SetCalendarEvent(_ context.Context, id, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].CalendarEventID = &eventID
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *TrainingRepo) ListOverlapping(_ context.Context, from, to time.Time) ([]domain.Training, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Training
	for _, t := range r.items {
		if t.StartTime.Before(to) && t.EndTime.After(from) {
			out = append(out, t)
		}
	}
	return out, nil
}
