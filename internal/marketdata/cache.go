package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/models"
)

// CachedSource keeps fetched records in Redis for ttl. Cache failures are
// logged and never fail a fetch.
type CachedSource struct {
	next   benchmark.Source
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(next benchmark.Source, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedSource{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "market-stats-cache"}),
	}
}

// CacheKey is market:stats:<postal>:<from>-<to>.
func CacheKey(postalCode string, current, target models.Rating) string {
	return fmt.Sprintf("market:stats:%s:%s-%s", postalCode, current, target)
}

func (c *CachedSource) FetchRecords(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
	key := CacheKey(postalCode, current, target)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var records []models.MarketRecord
		if jsonErr := json.Unmarshal([]byte(val), &records); jsonErr == nil {
			return records, nil
		}
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
	case err != redis.Nil:
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	records, err := c.next.FetchRecords(ctx, postalCode, current, target)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return records, nil
	}
	if err := c.redis.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
	return records, nil
}
