package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

func expectHit(mock redismock.ClientMock, key string, window time.Duration, count int64) {
	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(count)
	mock.ExpectExpireNX(key, window).SetVal(count == 1)
	mock.ExpectTxPipelineExec()
}

func TestAllowCountsWithinWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := New(db, 2, time.Minute, zap.NewNop())
	ctx := context.Background()

	expectHit(mock, "ratelimit:public:1.2.3.4", time.Minute, 1)
	expectHit(mock, "ratelimit:public:1.2.3.4", time.Minute, 2)
	expectHit(mock, "ratelimit:public:1.2.3.4", time.Minute, 3)

	for _, want := range []bool{true, true, false} {
		ok, err := limiter.Allow(ctx, "public:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := New(db, 1, time.Minute, zap.NewNop())

	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:k").SetErr(errors.New("redis down"))
	mock.ExpectExpireNX("ratelimit:k", time.Minute).SetVal(false)
	mock.ExpectTxPipelineExec()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestDisabledLimiter(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ok, err := New(db, 0, time.Minute, zap.NewNop()).Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := New(db, 1, 30*time.Second, zap.NewNop())

	app := fiber.New(fiber.Config{
		ProxyHeader: fiber.HeaderXForwardedFor,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Get("/p", limiter.Middleware("public"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	expectHit(mock, "ratelimit:public:10.0.0.7", 30*time.Second, 1)
	expectHit(mock, "ratelimit:public:10.0.0.7", 30*time.Second, 2)
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:public:10.0.0.7").SetErr(errors.New("redis down"))
	mock.ExpectExpireNX("ratelimit:public:10.0.0.7", 30*time.Second).SetVal(false)
	mock.ExpectTxPipelineExec()

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, "10.0.0.7")
		return req
	}

	resp, err := app.Test(newReq())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(newReq())
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get(fiber.HeaderRetryAfter))

	resp, err = app.Test(newReq())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAllowRefreshesMissingTTLOnEveryHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := New(db, 5, time.Minute, zap.NewNop())

	// A counter left without a TTL gets one on the next hit.
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:login:1.2.3.4").SetVal(7)
	mock.ExpectExpireNX("ratelimit:login:1.2.3.4", time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()

	ok, err := limiter.Allow(context.Background(), "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
