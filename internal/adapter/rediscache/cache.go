// Package rediscache keeps short-lived copies of admin aggregates for the
// presentation collaborator, plus the admin-unit listings and per-layer query
// counters it reads.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/spatial"
)

const (
	aggregateTTL = 2 * time.Hour
	adminListTTL = 24 * time.Hour
)

// Cache implements domain.AggregateCache on a Redis instance.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr string, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connected", "addr", addr)
	return &Cache{client: client, logger: logger}, nil
}

// NewCache wraps an existing client; used by tests.
func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// AggregateKey builds the lookup key the presentation side uses.
func AggregateKey(adminID string, date time.Time, parameter string, period domain.Period) string {
	return fmt.Sprintf("meteo_stats:%s:%s:%s:%s",
		adminID, date.UTC().Format(time.DateOnly), parameter, period)
}

// CacheAggregate implements domain.AggregateCache: the aggregate is stored as
// JSON under its natural key with a two hour TTL.
func (c *Cache) CacheAggregate(ctx context.Context, parameter string, agg domain.AdminAggregateStat) error {
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	key := AggregateKey(agg.AdminID, agg.Date, parameter, agg.Period)
	if err := c.client.Set(ctx, key, payload, aggregateTTL).Err(); err != nil {
		return fmt.Errorf("cache aggregate %s: %w", key, err)
	}
	return nil
}

// CacheAdminList stores the identifiers of one administrative layer for a
// day, so listings do not need the document store.
func (c *Cache) CacheAdminList(ctx context.Context, layer spatial.Layer) error {
	ids := make([]string, len(layer.Polygons))
	for i, p := range layer.Polygons {
		ids[i] = p.ID
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode admin list: %w", err)
	}
	key := "admin_list:" + layer.Name
	if err := c.client.Set(ctx, key, payload, adminListTTL).Err(); err != nil {
		return fmt.Errorf("cache admin list %s: %w", key, err)
	}
	return nil
}

// CountQuery bumps the per-layer query counter and returns the new value.
func (c *Cache) CountQuery(ctx context.Context, layer string) (int64, error) {
	n, err := c.client.Incr(ctx, "query_counter:"+layer).Result()
	if err != nil {
		return 0, fmt.Errorf("bump query counter for %s: %w", layer, err)
	}
	return n, nil
}
