package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/sweetline/sweetline/internal/inventory"
)

const defaultProductsTTL = 30 * time.Second

// ProductLoader reads the sellable stock of a branch from storage.
type ProductLoader func(ctx context.Context, branchID int64) ([]inventory.BranchStock, error)

// ProductCache serves the quick bill product list of a branch from Redis.
// Concurrent misses for the same branch share one load. Entries are dropped
// whenever the branch's stock changes.
type ProductCache struct {
	client *redis.Client
	load   ProductLoader
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	group  singleflight.Group
}

var _ inventory.ChangeNotifier = (*ProductCache)(nil)

// NewProductCache builds the cache. A nil client disables caching.
func NewProductCache(client *redis.Client, load ProductLoader, ttl time.Duration, logger *slog.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = defaultProductsTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductCache{client: client, load: load, ttl: ttl, prefix: "quickbill:products:", logger: logger}
}

func (c *ProductCache) key(branchID int64) string {
	return c.prefix + strconv.FormatInt(branchID, 10)
}

// Products returns the stock rows of branchID, cached.
func (c *ProductCache) Products(ctx context.Context, branchID int64) ([]inventory.BranchStock, error) {
	key := c.key(branchID)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var items []inventory.BranchStock
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
			c.logger.Warn("discarding corrupt product cache entry", slog.Int64("branch_id", branchID))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("product cache read failed", slog.Int64("branch_id", branchID), slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		items, err := c.load(ctx, branchID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []inventory.BranchStock{}
		}
		if c.client != nil {
			payload, err := json.Marshal(items)
			if err == nil {
				err = c.client.Set(ctx, key, payload, c.ttl).Err()
			}
			if err != nil {
				c.logger.Warn("product cache write failed", slog.Int64("branch_id", branchID), slog.Any("error", err))
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sales: products for branch %d: %w", branchID, err)
	}
	return v.([]inventory.BranchStock), nil
}

// BranchStockChanged implements inventory.ChangeNotifier.
func (c *ProductCache) BranchStockChanged(ctx context.Context, branchIDs ...int64) {
	if c.client == nil || len(branchIDs) == 0 {
		return
	}
	keys := make([]string, len(branchIDs))
	for i, id := range branchIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("product cache invalidation failed", slog.Any("branch_ids", branchIDs), slog.Any("error", err))
	}
}
