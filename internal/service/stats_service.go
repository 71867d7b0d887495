package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/report"
	"github.com/spec-kit/pqr-service/internal/repository"
)

// StatsFilter holds the optional statistics filters.
type StatsFilter struct {
	City     string
	GestorID string
	Status   string
}

// StatsService aggregates ticket statistics. Nothing is cached.
type StatsService struct {
	tickets repository.TicketRepository
	reports *report.Generator
	now     func() time.Time
}

// NewStatsService builds the service.
func NewStatsService(tickets repository.TicketRepository, reports *report.Generator) *StatsService {
	return &StatsService{tickets: tickets, reports: reports, now: time.Now}
}

// Stats computes totals over the filtered set. Non-SUPERADMIN callers are
// always scoped to their own tickets.
func (s *StatsService) Stats(ctx context.Context, caller *domain.User, filter StatsFilter) (*domain.TicketStats, StatsFilter, error) {
	filter = s.scope(caller, filter)

	repoFilter := repository.TicketFilter{Statuses: domain.StatusesForFilter(filter.Status)}
	if filter.City != "" {
		city := filter.City
		repoFilter.City = &city
	}
	if filter.GestorID != "" {
		gestor := filter.GestorID
		repoFilter.AssignedToID = &gestor
	}

	stats, err := s.tickets.Stats(ctx, repoFilter)
	if err != nil {
		return nil, filter, err
	}
	return stats, filter, nil
}

// Report renders the statistics as a PDF.
func (s *StatsService) Report(ctx context.Context, caller *domain.User, filter StatsFilter) ([]byte, error) {
	stats, applied, err := s.Stats(ctx, caller, filter)
	if err != nil {
		return nil, err
	}
	return s.reports.Stats(stats, report.StatsFilter{
		City:     applied.City,
		GestorID: applied.GestorID,
		Status:   applied.Status,
	}, s.now())
}

func (s *StatsService) scope(caller *domain.User, filter StatsFilter) StatsFilter {
	filter = StatsFilter{
		City:     strings.TrimSpace(filter.City),
		GestorID: strings.TrimSpace(filter.GestorID),
		Status:   strings.TrimSpace(filter.Status),
	}
	if !caller.IsSuperAdmin() {
		filter.GestorID = caller.ID
	}
	return filter
}
