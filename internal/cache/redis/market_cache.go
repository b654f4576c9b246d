package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// DefaultMarketTTL is used when NewMarketCache is given a zero TTL.
const DefaultMarketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache. Each market is a hash under
// "<prefix>market:{id}" whose "data" field holds the JSON snapshot and whose
// "status" field mirrors the resolved flag for cheap inspection with
// redis-cli.
type MarketCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMarketCache creates a MarketCache.
func NewMarketCache(c *Client, prefix string, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), prefix: prefix, ttl: ttl}
}

func (mc *MarketCache) key(id uint64) string {
	return mc.prefix + "market:" + strconv.FormatUint(id, 10)
}

func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %d: %w", market.ID, err)
	}
	status := "open"
	if market.Resolved {
		status = "resolved"
	}

	key := mc.key(market.ID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "status", status)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %d: %w", market.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a cache miss.
func (mc *MarketCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, mc.key(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %d: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %d: %w", id, err)
	}
	return market, nil
}

func (mc *MarketCache) Invalidate(ctx context.Context, id uint64) error {
	if err := mc.rdb.Del(ctx, mc.key(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %d: %w", id, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
