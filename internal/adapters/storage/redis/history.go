package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"storefront-service/internal/core/domain"
)

const (
	ownedSetKey      = "purchase:owned"
	countKeyPrefix   = "purchase:count:"
	recordsKeyPrefix = "purchase:records:"
)

// HistoryCache is a Redis implementation of the HistoryStore port, meant
// for single-session deployments and fast duplicate checks.
type HistoryCache struct {
	rdb *redis.Client
}

// NewHistoryCache creates and tests a new connection to Redis.
func NewHistoryCache(addr string) (*HistoryCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &HistoryCache{rdb: rdb}, nil
}

// Close gracefully closes the Redis connection.
func (c *HistoryCache) Close() error {
	return c.rdb.Close()
}

func (c *HistoryCache) HasHistory(ctx context.Context, itemID int) (bool, error) {
	owned, err := c.rdb.SIsMember(ctx, ownedSetKey, itemID).Result()
	if err != nil {
		return false, fmt.Errorf("redis SISMEMBER failed: %w", err)
	}
	return owned, nil
}

func (c *HistoryCache) CountHistory(ctx context.Context, itemID int) (int, error) {
	n, err := c.rdb.Get(ctx, countKey(itemID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET failed: %w", err)
	}
	return n, nil
}

// SaveHistory appends the record and bumps the membership set and counter
// in one pipeline so a concurrent reader never sees a half-written entry.
func (c *HistoryCache) SaveHistory(ctx context.Context, itemID int, rec domain.PurchaseRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase record: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, ownedSetKey, itemID)
	pipe.Incr(ctx, countKey(itemID))
	pipe.RPush(ctx, recordsKey(itemID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) RemoveHistory(ctx context.Context, itemID int) error {
	pipe := c.rdb.TxPipeline()
	pipe.SRem(ctx, ownedSetKey, itemID)
	pipe.Del(ctx, countKey(itemID), recordsKey(itemID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) ClearAllHistory(ctx context.Context) error {
	ids, err := c.rdb.SMembers(ctx, ownedSetKey).Result()
	if err != nil {
		return fmt.Errorf("redis SMEMBERS failed: %w", err)
	}

	keys := make([]string, 0, 2*len(ids)+1)
	keys = append(keys, ownedSetKey)
	for _, id := range ids {
		keys = append(keys, countKeyPrefix+id, recordsKeyPrefix+id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

func countKey(itemID int) string {
	return fmt.Sprintf("%s%d", countKeyPrefix, itemID)
}

func recordsKey(itemID int) string {
	return fmt.Sprintf("%s%d", recordsKeyPrefix, itemID)
}
