package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/pqr-service/internal/availability"
)

const (
	busyKeyPrefix       = "calendar:busy:"
	generationKeyPrefix = "calendar:busy:gen:"
	generationTTL       = 7 * 24 * time.Hour
)

// BusyCache keeps short-lived busy snapshots per local day in Redis.
// Snapshots are keyed by a per-day generation; Invalidate bumps the
// generation so a snapshot computed before a booking is never read again,
// even when its write lands after the invalidation.
type BusyCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewBusyCache builds a cache. A non-positive ttl disables caching.
func NewBusyCache(client redis.Cmdable, ttl time.Duration) *BusyCache {
	return &BusyCache{client: client, ttl: ttl}
}

type cachedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Key returns the Redis key for a day snapshot at a generation.
func Key(day string, generation int64) string {
	return busyKeyPrefix + day + ":" + strconv.FormatInt(generation, 10)
}

// GenerationKey returns the Redis key holding the day's generation counter.
func GenerationKey(day string) string {
	return generationKeyPrefix + day
}

func (c *BusyCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Generation reads the current generation for a day. A missing counter is generation 0.
func (c *BusyCache) Generation(ctx context.Context, day string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, GenerationKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the cached snapshot for a generation. The bool is false on a miss.
func (c *BusyCache) Get(ctx context.Context, day string, generation int64) ([]availability.Interval, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, Key(day, generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cached []cachedInterval
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, err
	}
	out := make([]availability.Interval, len(cached))
	for i, ci := range cached {
		out[i] = availability.Interval{Start: ci.Start, End: ci.End}
	}
	return out, true, nil
}

// Set stores the snapshot computed under generation.
func (c *BusyCache) Set(ctx context.Context, day string, generation int64, busy []availability.Interval) error {
	if !c.enabled() {
		return nil
	}
	cached := make([]cachedInterval, len(busy))
	for i, b := range busy {
		cached[i] = cachedInterval{Start: b.Start.UTC(), End: b.End.UTC()}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(day, generation), string(raw), c.ttl).Err()
}

// Invalidate moves the day to a new generation.
func (c *BusyCache) Invalidate(ctx context.Context, day string) error {
	if !c.enabled() {
		return nil
	}
	key := GenerationKey(day)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, generationTTL)
		return nil
	})
	return err
}
