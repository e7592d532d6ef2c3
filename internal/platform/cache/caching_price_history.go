// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

const (
	// DefaultTTL is used when a non-positive ttl is given.
	DefaultTTL = 30 * time.Second
	// DefaultNamespace prefixes every cache key.
	DefaultNamespace = "price_history"
	scanCount        = 200
)

// PriceHistoryStore is the persistence layer the cache decorates.
type PriceHistoryStore interface {
	usecase.PersistenceSink
	usecase.HistoryReader
	usecase.PriceHistoryPurger
}

// CachingPriceHistory decorates a PriceHistoryStore with Redis caching of
// history reads. Writes go to the inner store first and then invalidate the
// affected keys; cache failures never fail the call.
type CachingPriceHistory struct {
	inner     PriceHistoryStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ PriceHistoryStore = (*CachingPriceHistory)(nil)

// NewCachingPriceHistory decorates inner with Redis caching.
// If ttl is 0, it defaults to DefaultTTL. If namespace is empty, it uses DefaultNamespace.
func NewCachingPriceHistory(rdb *redis.Client, ttl time.Duration, inner PriceHistoryStore, namespace string) *CachingPriceHistory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachingPriceHistory{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// RecordPriceHistory appends a price point and invalidates cached history of the instrument.
func (c *CachingPriceHistory) RecordPriceHistory(ctx context.Context, instrumentID string, price float64, recordedAt time.Time) error {
	if err := c.inner.RecordPriceHistory(ctx, instrumentID, price, recordedAt); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	_ = c.deleteByPattern(ctx, c.cacheKeyPrefix(instrumentID)+"*") // Best effort
	return nil
}

// UpdateCurrentPrice is not cached.
func (c *CachingPriceHistory) UpdateCurrentPrice(ctx context.Context, instrumentID string, price float64) error {
	return c.inner.UpdateCurrentPrice(ctx, instrumentID, price)
}

// FindPriceHistory checks the cache first, then falls back to the inner store.
func (c *CachingPriceHistory) FindPriceHistory(ctx context.Context, instrumentID string, limit int) ([]entity.PricePoint, error) {
	if c.rdb == nil {
		return c.inner.FindPriceHistory(ctx, instrumentID, limit)
	}

	key := c.cacheKey(instrumentID, limit)

	// 1) キャッシュを確認
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.PricePoint
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// 破損したエントリは削除
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) DBにフォールバック
	out, err := c.inner.FindPriceHistory(ctx, instrumentID, limit)
	if err != nil {
		return nil, err
	}

	// 3) キャッシュに保存（ベストエフォート）
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// DeleteOlderThan prunes the inner store and drops every cached history.
func (c *CachingPriceHistory) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := c.inner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if c.rdb != nil && n > 0 {
		_ = c.deleteByPattern(ctx, c.namespace+":*")
	}
	return n, nil
}

func (c *CachingPriceHistory) cacheKey(instrumentID string, limit int) string {
	return fmt.Sprintf("%s%d", c.cacheKeyPrefix(instrumentID), limit)
}

func (c *CachingPriceHistory) cacheKeyPrefix(instrumentID string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(instrumentID))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPriceHistory) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	return strings.NewReplacer(" ", "_", ":", "_", "*", "_").Replace(s)
}
