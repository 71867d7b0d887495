package service

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/report"
	"github.com/spec-kit/pqr-service/internal/storage"
	"github.com/spec-kit/pqr-service/internal/testutil"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

type fixture struct {
	store      *testutil.Store
	fs         afero.Fs
	dispatcher *testutil.Dispatcher
	tickets    *TicketService
	followUps  *FollowUpService
	stats      *StatsService

	admin  *domain.User
	gestor *domain.User
	other  *domain.User
}

func ticketConfig() config.TicketConfig {
	return config.TicketConfig{Revenue: decimal.NewFromInt(70000), MaxMedia: 3, MaxMediaBytes: 1 << 20}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	fs := afero.NewMemMapFs()
	files := storage.NewLocalFs(fs)
	dispatcher := &testutil.Dispatcher{}
	logger := zap.NewNop()
	reports := report.NewGenerator(time.UTC)

	adminName := "Admin"
	f := &fixture{
		store:      store,
		fs:         fs,
		dispatcher: dispatcher,
		admin:      store.Users.Add(domain.User{ID: "admin-1", Username: "admin", Role: domain.RoleSuperAdmin, Name: &adminName}),
		gestor:     store.Users.Add(domain.User{ID: "gestor-1", Username: "gestor", Role: domain.RoleGestor}),
		other:      store.Users.Add(domain.User{ID: "gestor-2", Username: "otro", Role: domain.RoleGestor}),
	}
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets,
		FollowUpRepo: store.FollowUps,
		MediaRepo:    store.Media,
		UserRepo:     store.Users,
		Transactor:   store.Transactor(),
		Storage:      files,
		Reports:      reports,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Config:       ticketConfig(),
	})
	f.followUps = NewFollowUpService(FollowUpDependencies{
		TicketRepo: store.Tickets,
		Transactor: store.Transactor(),
		Storage:    files,
		Dispatcher: dispatcher,
		Logger:     logger,
		Config:     ticketConfig(),
	})
	f.stats = NewStatsService(store.Tickets, reports)
	return f
}

func (f *fixture) addTicket(id, owner, city string, status domain.TicketStatus) {
	f.store.Tickets.Add(domain.Ticket{
		ID:           id,
		PatientName:  "Paciente " + id,
		City:         city,
		Phone:        "3000000000",
		Description:  "desc",
		Status:       status,
		Revenue:      decimal.NewFromInt(70000),
		AssignedToID: owner,
		CreatedAt:    time.Now(),
	})
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	entries, err := afero.ReadDir(f.fs, "media")
	if err != nil {
		return nil
	}
	for _, e := range entries {
		files = append(files, e.Name())
	}
	return files
}

func upload(name, mime, body string) MediaInput {
	return MediaInput{FileName: name, MimeType: mime, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}
