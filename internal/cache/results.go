// Package cache provides in-memory caching of validated analysis results
// using Ristretto, with an optional shared Redis tier. Repeated prompts
// skip the retry/fallback pipeline entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/resilient-ai-invoker/internal/jsonx"
)

// ResultCache is a two-tier cache for validated analysis objects:
// L1 in-memory Ristretto, optional L2 Redis shared across instances.
type ResultCache struct {
	l1        *ristretto.Cache[string, []byte]
	l2        *redis.Client
	ttl       time.Duration
	logger    *zap.Logger
	metrics   Metrics
	metricsMu sync.Mutex
}

// Metrics tracks cache performance counters.
type Metrics struct {
	L1Hits   int64
	L1Misses int64
	L2Hits   int64
	L2Misses int64
}

// NewResultCache creates a result cache. maxCost bounds the L1 cost in
// bytes (default 16 MiB), ttl bounds entry lifetime (default 10 minutes).
// redisClient may be nil to run L1-only.
func NewResultCache(maxCost int64, ttl time.Duration, redisClient *redis.Client, logger *zap.Logger) (*ResultCache, error) {
	if maxCost == 0 {
		maxCost = 16 << 20
	}
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l1, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &ResultCache{
		l1:     l1,
		l2:     redisClient,
		ttl:    ttl,
		logger: logger.Named("resultcache"),
	}, nil
}

// Key derives a stable cache key from the prompt and the expected field
// set. Field order is part of the key; callers pass the same ordered set
// they pass to the invoker.
func Key(prompt string, fields []string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + strings.Join(fields, ",")))
	return "analysis:" + hex.EncodeToString(sum[:])
}

// Get retrieves a cached analysis object, trying L1 first then L2. An L2
// hit is promoted to L1.
func (c *ResultCache) Get(ctx context.Context, key string) (map[string]interface{}, bool) {
	if data, found := c.l1.Get(key); found {
		c.recordL1Hit()
		return decode(data)
	}
	c.recordL1Miss()

	if c.l2 != nil {
		data, err := c.l2.Get(ctx, key).Bytes()
		if err == nil && len(data) > 0 {
			c.recordL2Hit()
			c.l1.SetWithTTL(key, data, int64(len(data)), c.ttl)
			return decode(data)
		}
		c.recordL2Miss()
	}

	return nil, false
}

// Set stores a validated analysis object in L1 and, asynchronously, in L2.
func (c *ResultCache) Set(ctx context.Context, key string, result map[string]interface{}) error {
	data, err := jsonx.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	c.l1.SetWithTTL(key, data, int64(len(data)), c.ttl)

	if c.l2 != nil {
		go func() {
			if err := c.l2.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("failed to set L2 cache",
					zap.String("key", key),
					zap.Error(err))
			}
		}()
	}
	return nil
}

// Delete removes an entry from both tiers.
func (c *ResultCache) Delete(ctx context.Context, key string) error {
	c.l1.Del(key)
	if c.l2 != nil {
		if err := c.l2.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("L2 delete failed: %w", err)
		}
	}
	return nil
}

// Wait blocks until pending L1 writes are visible. Used by tests and by
// callers that read back immediately after Set.
func (c *ResultCache) Wait() {
	c.l1.Wait()
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Metrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}

// Close releases cache resources.
func (c *ResultCache) Close() error {
	c.l1.Close()
	return nil
}

func decode(data []byte) (map[string]interface{}, bool) {
	var result map[string]interface{}
	if err := jsonx.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return result, true
}

func (c *ResultCache) recordL1Hit() {
	c.metricsMu.Lock()
	c.metrics.L1Hits++
	c.metricsMu.Unlock()
}

func (c *ResultCache) recordL1Miss() {
	c.metricsMu.Lock()
	c.metrics.L1Misses++
	c.metricsMu.Unlock()
}

func (c *ResultCache) recordL2Hit() {
	c.metricsMu.Lock()
	c.metrics.L2Hits++
	c.metricsMu.Unlock()
}

func (c *ResultCache) recordL2Miss() {
	c.metricsMu.Lock()
	c.metrics.L2Misses++
	c.metricsMu.Unlock()
}
