package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/pqr-service/internal/api/http/handlers"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/observability"
	"github.com/spec-kit/pqr-service/internal/ratelimit"
	"github.com/spec-kit/pqr-service/internal/report"
	"github.com/spec-kit/pqr-service/internal/service"
	"github.com/spec-kit/pqr-service/internal/storage"
	"github.com/spec-kit/pqr-service/internal/testutil"
)

var ticketIDPattern = regexp.MustCompile(`^PQR[0-9A-F]{6}$`)

const testPassword = "secreto1"

type testServer struct {
	app    *fiber.App
	store  *testutil.Store
	tokens *auth.TokenManager
	admin  *domain.User
	gestor *domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimiter(t, ratelimit.New(nil, 0, time.Minute, zap.NewNop()))
}

func newTestServerWithLimiter(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := testutil.NewStore()

	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	gestorName := "Laura Gómez"
	admin := store.Users.Add(domain.User{ID: "admin-1", Username: "admin", PasswordHash: hash, Role: domain.RoleSuperAdmin})
	gestor := store.Users.Add(domain.User{ID: "gestor-1", Username: "gestor", PasswordHash: hash, Role: domain.RoleGestor, Name: &gestorName})

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost}, store.Users)
	files := storage.NewLocalFs(afero.NewMemMapFs())
	reports := report.NewGenerator(time.UTC)
	dispatcher := &testutil.Dispatcher{}
	ticketCfg := config.TicketConfig{Revenue: decimal.NewFromInt(70000), MaxMedia: 3, MaxMediaBytes: 1 << 20}

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets,
		FollowUpRepo: store.FollowUps,
		MediaRepo:    store.Media,
		UserRepo:     store.Users,
		Transactor:   store.Transactor(),
		Storage:      files,
		Reports:      reports,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Config:       ticketCfg,
	})
	followUps := service.NewFollowUpService(service.FollowUpDependencies{
		TicketRepo: store.Tickets,
		Transactor: store.Transactor(),
		Storage:    files,
		Dispatcher: dispatcher,
		Logger:     logger,
		Config:     ticketCfg,
	})
	trainings := service.NewTrainingService(service.TrainingDependencies{
		TrainingRepo: store.Trainings,
		UserRepo:     store.Users,
		Calendar:     &testutil.Calendar{},
		Calculator:   availability.NewCalculator(8, 18, availability.FixedZone(-5)),
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(logger, metrics),
		ProxyHeader:  fiber.HeaderXForwardedFor,
	})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("pqr-service", "test", nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(service.NewUserService(store.Users, bcrypt.MinCost, logger)),
		Tickets:        handlers.NewTicketsHandler(tickets, followUps),
		Public:         handlers.NewPublicHandler(tickets),
		Stats:          handlers.NewStatsHandler(service.NewStatsService(store.Tickets, reports)),
		Trainings:      handlers.NewTrainingsHandler(trainings),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users),
		RateLimiter:    limiter,
	})
	return &testServer{app: app, store: store, tokens: authService.TokenManager(), admin: admin, gestor: gestor}
}

func (s *testServer) token(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.send(t, req, token)
}

func (s *testServer) send(t *testing.T, req *stdhttp.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func validTicket() map[string]any {
	return map[string]any{
		"patientName":   "Ana Pérez",
		"contactMethod": "telefono",
		"city":          "Bogotá",
		"phone":         "3001234567",
		"email":         "ana@example.com",
		"description":   "Dolor persistente",
	}
}

func TestLoginIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{"username": "GESTOR", "password": testPassword})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "gestor-1", user["id"])

	status, body = s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{"username": "gestor", "password": "otra"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestCreateTicketJSON(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodPost, "/api/tickets", s.token(t, s.gestor), validTicket())
	require.Equal(t, fiber.StatusCreated, status, body)

	assert.Regexp(t, ticketIDPattern, body["id"])
	assert.Equal(t, "INICIAL", body["status"])
	assert.EqualValues(t, 70000, body["revenue"])
	assert.Equal(t, "gestor-1", body["assignedToId"])
	assignee := body["assignedTo"].(map[string]any)
	assert.Equal(t, "Laura Gómez", assignee["name"])
}

func TestCreateTicketRejectsMissingFields(t *testing.T) {
	s := newTestServer(t)
	payload := validTicket()
	delete(payload, "phone")
	status, body := s.do(t, fiber.MethodPost, "/api/tickets", s.token(t, s.gestor), payload)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	assert.Equal(t, 0, s.store.Tickets.Len())
}

func TestCreateTicketMultipartAndDownloadMedia(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.gestor)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range validTicket() {
		require.NoError(t, w.WriteField(k, v.(string)))
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="media"; filename="foto.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	status, body := s.send(t, req, token)
	require.Equal(t, fiber.StatusCreated, status, body)

	media := body["media"].([]any)
	require.Len(t, media, 1)
	item := media[0].(map[string]any)
	assert.Equal(t, "foto.png", item["fileName"])

	req = httptest.NewRequest(fiber.MethodGet, item["url"].(string), nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, fiber.MethodGet, "/api/tickets", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSuperAdminOnlyRoutes(t *testing.T) {
	s := newTestServer(t)
	gestorToken := s.token(t, s.gestor)
	adminToken := s.token(t, s.admin)

	_, created := s.do(t, fiber.MethodPost, "/api/tickets", gestorToken, validTicket())
	id := created["id"].(string)

	status, body := s.do(t, fiber.MethodPatch, "/api/tickets/"+id+"/assign", gestorToken, map[string]any{"userId": "admin-1"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, fiber.MethodGet, "/api/users", gestorToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(t, fiber.MethodGet, "/metrics", gestorToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodPatch, "/api/tickets/"+id+"/assign", adminToken, map[string]any{"userId": "admin-1"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "admin-1", body["assignedToId"])

	status, _ = s.do(t, fiber.MethodGet, "/api/tickets/"+id, gestorToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["items"], 2)
}

func TestFollowUpFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.gestor)
	_, created := s.do(t, fiber.MethodPost, "/api/tickets", token, validTicket())
	id := created["id"].(string)

	status, body := s.do(t, fiber.MethodPost, "/api/tickets/"+id+"/follow-ups", token, map[string]any{"content": "sin diagnóstico"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+id+"/follow-ups", token, map[string]any{"diagnosis": "Migraña"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "EN_SEGUIMIENTO", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/"+id, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "EN_SEGUIMIENTO", body["status"])
	assert.Len(t, body["followUps"], 1)
}

func TestPublicLookupHidesContactData(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, fiber.MethodPost, "/api/tickets", s.token(t, s.gestor), validTicket())
	id := created["id"].(string)

	status, body := s.do(t, fiber.MethodGet, "/api/public/tickets/"+id, "", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, id, body["code"])
	assert.Equal(t, "Laura Gómez", body["handlerName"])
	assert.NotContains(t, body, "phone")
	assert.NotContains(t, body, "email")
	assert.NotContains(t, body, "patientName")

	status, body = s.do(t, fiber.MethodGet, "/api/public/tickets/PQR000000", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestTrainingAvailabilityEndpoint(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodGet, "/api/trainings/availability?date=2030-06-10&duration=2", "", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["slots"], 9)

	status, body = s.do(t, fiber.MethodGet, "/api/trainings/availability?date=10-06-2030", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, fiber.MethodGet, "/api/trainings/availability?date=2030-06-10&duration=abc", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, fiber.MethodGet, "/api/trainings/check?start=2030-06-10T09:00:00-05:00&end=2030-06-10T10:00:00-05:00", "", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["available"])
}

func TestHealthLive(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}

func expectLimiterHit(mock redismock.ClientMock, key string, count int64) {
	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(count)
	mock.ExpectExpireNX(key, time.Minute).SetVal(count == 1)
	mock.ExpectTxPipelineExec()
}

func TestSecretCheckingRoutesAreRateLimited(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newTestServerWithLimiter(t, ratelimit.New(db, 1, time.Minute, zap.NewNop()))

	expectLimiterHit(mock, "ratelimit:login:10.0.0.9", 1)
	expectLimiterHit(mock, "ratelimit:login:10.0.0.9", 2)
	expectLimiterHit(mock, "ratelimit:training-book:10.0.0.9", 2)

	post := func(path string, body map[string]any) (int, map[string]any) {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderXForwardedFor, "10.0.0.9")
		return s.send(t, req, "")
	}

	status, _ := post("/api/auth/login", map[string]any{"username": "gestor", "password": "otra"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := post("/api/auth/login", map[string]any{"username": "gestor", "password": testPassword})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", errorCode(body))

	status, body = post("/api/trainings", map[string]any{"authCode": "guess"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", errorCode(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaDownloadEscapesFileName(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.gestor)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range validTicket() {
		require.NoError(t, w.WriteField(k, v.(string)))
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="media"; filename="foto \"1\"; x.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	status, body := s.send(t, req, token)
	require.Equal(t, fiber.StatusCreated, status, body)
	item := body["media"].([]any)[0].(map[string]any)
	require.Equal(t, `foto "1"; x.png`, item["fileName"])

	req = httptest.NewRequest(fiber.MethodGet, item["url"].(string), nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	disposition, params, err := mime.ParseMediaType(resp.Header.Get(fiber.HeaderContentDisposition))
	require.NoError(t, err)
	assert.Equal(t, "inline", disposition)
	assert.Equal(t, `foto "1"; x.png`, params["filename"])
}

func TestTicketReportIsAttachment(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.gestor)
	_, created := s.do(t, fiber.MethodPost, "/api/tickets", token, validTicket())
	id := created["id"].(string)

	req := httptest.NewRequest(fiber.MethodGet, "/api/tickets/"+id+"/report", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	_, params, err := mime.ParseMediaType(resp.Header.Get(fiber.HeaderContentDisposition))
	require.NoError(t, err)
	assert.Equal(t, "caso-"+id+".pdf", params["filename"])
}
