package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"docextract/internal/schema/models"
)

const activeSchemaKeyPrefix = "routing:active:"

// RedisCache caches the ACTIVE schema record per lineage so routing does not
// hit the store on every upload. Entries are TTL-bounded and invalidated by
// the lifecycle controller whenever a lineage changes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisCache constructs a routing cache. A zero ttl defaults to one minute.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, log: logger}
}

func activeSchemaKey(lineage models.Lineage) string {
	return activeSchemaKeyPrefix + lineage.String()
}

// GetActive returns the cached ACTIVE record for a lineage, or (nil, false)
// on a miss. Cache errors are logged and treated as misses; routing must
// never fail because the cache is down.
func (c *RedisCache) GetActive(ctx context.Context, lineage models.Lineage) (*models.Record, bool) {
	raw, err := c.client.Get(ctx, activeSchemaKey(lineage)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("routing cache read failed", "lineage", lineage.String(), "error", err)
		return nil, false
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		c.log.Warn("routing cache entry corrupt, dropping", "lineage", lineage.String(), "error", err)
		c.Invalidate(ctx, lineage)
		return nil, false
	}
	return &record, true
}

// SetActive stores the ACTIVE record for a lineage with the configured TTL.
func (c *RedisCache) SetActive(ctx context.Context, record *models.Record) {
	raw, err := json.Marshal(record)
	if err != nil {
		c.log.Warn("routing cache marshal failed", "schema_id", record.ID, "error", err)
		return
	}
	lineage := models.LineageOf(record)
	if err := c.client.Set(ctx, activeSchemaKey(lineage), raw, c.ttl).Err(); err != nil {
		c.log.Warn("routing cache write failed", "lineage", lineage.String(), "error", err)
	}
}

// Invalidate drops the cached entry for a lineage. Called by the lifecycle
// controller after approve and modify so routing never serves a demoted
// schema beyond the TTL window.
func (c *RedisCache) Invalidate(ctx context.Context, lineage models.Lineage) {
	if err := c.client.Del(ctx, activeSchemaKey(lineage)).Err(); err != nil {
		c.log.Warn("routing cache invalidation failed", "lineage", lineage.String(), "error", err)
	}
}
