package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"BreakoutSentinel/internal/model"
)

// CachedFetcher serves daily bars from Redis and falls back to the wrapped
// Fetcher on a miss. Redis failures never fail a fetch.
type CachedFetcher struct {
	next   Fetcher
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedFetcher wraps next with a Redis cache at addr.
func NewCachedFetcher(next Fetcher, addr, password string, db int, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next: next,
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          db,
			DialTimeout: 2 * time.Second,
			MaxRetries:  -1,
		}),
		ttl:    ttl,
		prefix: "breakout:",
	}
}

func (c *CachedFetcher) Name() string { return c.next.Name() + "+redis" }

func (c *CachedFetcher) key(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%sbars:%s:%s:%s:%s", c.prefix, c.next.Name(), symbol,
		start.Format(model.DateLayout), end.Format(model.DateLayout))
}

func (c *CachedFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	key := c.key(symbol, start, end)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var series model.PriceSeries
		if err := json.Unmarshal(data, &series); err == nil && series.Len() > 0 {
			return &series, nil
		}
		log.Printf("[WARN] discarding unreadable cache entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("[WARN] redis get %s: %v", key, err)
	}

	series, err := c.next.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return series, nil
	}
	if data, err := json.Marshal(series); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("[WARN] redis set %s: %v", key, err)
		}
	}
	return series, nil
}

// Close releases the Redis connection pool.
func (c *CachedFetcher) Close() error {
	return c.client.Close()
}
