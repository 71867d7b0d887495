package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pqr-service/internal/domain"
)

func seedStats(f *fixture) {
	f.addTicket("PQR00000A", f.gestor.ID, "Cali", domain.TicketStatusIniciado)
	f.addTicket("PQR00000B", f.gestor.ID, "Cali", domain.TicketStatusEnSeguimiento)
	f.addTicket("PQR00000C", f.gestor.ID, "Bogotá", domain.TicketStatusFinalizado)
	f.addTicket("PQR00000D", f.other.ID, "Cali", domain.TicketStatusInicial)
	f.addTicket("PQR00000E", f.other.ID, "Medellín", domain.TicketStatusFinalizado)
}

func TestStatsForSuperAdmin(t *testing.T) {
	f := newFixture(t)
	seedStats(f)

	stats, applied, err := f.stats.Stats(context.Background(), f.admin, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, StatsFilter{}, applied)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(2), stats.Resolved)
	assert.Equal(t, "350000", stats.Revenue.String())
	require.NotEmpty(t, stats.ByCity)
	assert.Equal(t, domain.CityCount{City: "Cali", Count: 3}, stats.ByCity[0])

	other, _, err := f.stats.Stats(context.Background(), f.admin, StatsFilter{GestorID: f.other.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), other.Total)
}

func TestStatsStatusGroups(t *testing.T) {
	f := newFixture(t)
	seedStats(f)
	ctx := context.Background()

	proceso, _, err := f.stats.Stats(ctx, f.admin, StatsFilter{Status: "PROCESO"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), proceso.Total)
	assert.Equal(t, int64(0), proceso.Resolved)

	cerrado, _, err := f.stats.Stats(ctx, f.admin, StatsFilter{Status: "CERRADO"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cerrado.Total)
	assert.Equal(t, int64(2), cerrado.Resolved)

	exact, _, err := f.stats.Stats(ctx, f.admin, StatsFilter{Status: "INICIAL"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), exact.Total)

	unknown, _, err := f.stats.Stats(ctx, f.admin, StatsFilter{Status: "NADA"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), unknown.Total)
	assert.Equal(t, "0", unknown.Revenue.String())
}

func TestStatsScopedForGestor(t *testing.T) {
	f := newFixture(t)
	seedStats(f)

	stats, applied, err := f.stats.Stats(context.Background(), f.gestor, StatsFilter{GestorID: f.other.ID, City: " Cali "})
	require.NoError(t, err)
	assert.Equal(t, f.gestor.ID, applied.GestorID)
	assert.Equal(t, "Cali", applied.City)
	assert.Equal(t, int64(2), stats.Total)
}

func TestStatsReport(t *testing.T) {
	f := newFixture(t)
	seedStats(f)

	pdf, err := f.stats.Report(context.Background(), f.gestor, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
