package dto

import (
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/service"
)

// CityCountResponse is one per-city bucket.
type CityCountResponse struct {
	City  string `json:"city"`
	Count int64  `json:"count"`
}

// StatsFilterResponse echoes the filters actually applied.
type StatsFilterResponse struct {
	City     string `json:"city,omitempty"`
	GestorID string `json:"gestorId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// StatsResponse aggregates ticket statistics.
type StatsResponse struct {
	Total    int64               `json:"total"`
	Resolved int64               `json:"resolved"`
	Revenue  float64             `json:"revenue"`
	ByCity   []CityCountResponse `json:"byCity"`
	Filters  StatsFilterResponse `json:"filters"`
}

// NewStatsResponse maps stats.
func NewStatsResponse(stats *domain.TicketStats, applied service.StatsFilter) StatsResponse {
	resp := StatsResponse{
		Total:    stats.Total,
		Resolved: stats.Resolved,
		Revenue:  stats.Revenue.InexactFloat64(),
		ByCity:   make([]CityCountResponse, 0, len(stats.ByCity)),
		Filters: StatsFilterResponse{
			City:     applied.City,
			GestorID: applied.GestorID,
			Status:   applied.Status,
		},
	}
	for _, c := range stats.ByCity {
		resp.ByCity = append(resp.ByCity, CityCountResponse{City: c.City, Count: c.Count})
	}
	return resp
}
