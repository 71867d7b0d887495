// Package ratelimit bounds requests per client with a Redis fixed window.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const keyPrefix = "ratelimit:"

// Limiter counts hits per key in fixed windows.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	logger *zap.Logger
}

// New builds a limiter. A non-positive limit disables it.
func New(client redis.Cmdable, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: int64(limit), window: window, logger: logger}
}

// Allow records a hit and reports whether the key is still under its limit.
// The window starts on the first hit: INCR and EXPIRE NX go out in one
// MULTI, so a counter never outlives its window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}
	key = keyPrefix + key
	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	}); err != nil {
		return true, err
	}
	return incr.Val() <= l.limit, nil
}

// Middleware limits by scope and client IP. Redis failures let the request through.
func (l *Limiter) Middleware(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := l.Allow(c.UserContext(), scope+":"+c.IP())
		if err != nil {
			l.logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(l.window.Seconds())))
			return apperrors.NewRateLimited("Demasiadas solicitudes, intente más tarde")
		}
		return c.Next()
	}
}
