package livebook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scv_dedup_backend/platform/logger"
)

// CachedChecker fronts another Checker with a Redis cache so a burst of
// offers for the same customer does not hammer the book. Failures are never
// cached; only actual verdicts have a shelf life.
type CachedChecker struct {
	inner Checker
	rdb   *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedChecker wraps inner with a verdict cache.
func NewCachedChecker(inner Checker, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedChecker {
	return &CachedChecker{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(req CheckRequest) string {
	return fmt.Sprintf("livebook:verdict:%s:%s", req.CustomerID, req.OfferType)
}

// Check returns a cached verdict when one is fresh, otherwise asks the
// inner checker and caches the answer. Cache errors degrade to a direct
// call rather than failing the check.
func (c *CachedChecker) Check(ctx context.Context, req CheckRequest) (Verdict, error) {
	key := cacheKey(req)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var v Verdict
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
		// Unreadable entry, fall through and refresh it.
	} else if err != redis.Nil {
		c.log.Warn("livebook cache read failed", "key", key, "error", err)
	}

	verdict, err := c.inner.Check(ctx, req)
	if err != nil {
		return Verdict{}, err
	}

	if encoded, err := json.Marshal(verdict); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.log.Warn("livebook cache write failed", "key", key, "error", err)
		}
	}

	return verdict, nil
}
