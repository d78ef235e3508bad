// Package cache serves the high-bid pointer for O(1) reads off the hot path.
// Entries are advisory: the auction row is the source of truth and every
// cached value can be rebuilt from it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/config"
)

// HighBidCache answers the current leader without touching the database.
type HighBidCache interface {
	// GetHighBid returns the cached pointer; hit is false on a miss. A cached
	// "no bids yet" is a hit with a nil pointer.
	GetHighBid(ctx context.Context, auctionID uuid.UUID) (hb *auction.HighBid, hit bool, err error)
	SetHighBid(ctx context.Context, auctionID uuid.UUID, hb *auction.HighBid) error
	Invalidate(ctx context.Context, auctionID uuid.UUID) error
}

// redisHighBidCache implements HighBidCache over Redis.
type redisHighBidCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisHighBidCache connects to Redis and verifies the connection.
func NewRedisHighBidCache(cfg *config.RedisConfig, ttl time.Duration, logger *zap.Logger) (HighBidCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("high bid cache initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", ttl))

	return &redisHighBidCache{client: client, ttl: ttl, logger: logger}, nil
}

func highBidKey(auctionID uuid.UUID) string {
	return "vex:auction:" + auctionID.String() + ":highbid"
}

func (c *redisHighBidCache) GetHighBid(ctx context.Context, auctionID uuid.UUID) (*auction.HighBid, bool, error) {
	raw, err := c.client.Get(ctx, highBidKey(auctionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		c.logger.Error("high bid cache get failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	if raw == "null" {
		return nil, true, nil
	}
	var hb auction.HighBid
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		return nil, false, fmt.Errorf("cache entry corrupt: %w", err)
	}
	return &hb, true, nil
}

func (c *redisHighBidCache) SetHighBid(ctx context.Context, auctionID uuid.UUID, hb *auction.HighBid) error {
	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal high bid: %w", err)
	}

	if err := c.client.Set(ctx, highBidKey(auctionID), payload, c.ttl).Err(); err != nil {
		c.logger.Error("high bid cache set failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (c *redisHighBidCache) Invalidate(ctx context.Context, auctionID uuid.UUID) error {
	if err := c.client.Del(ctx, highBidKey(auctionID)).Err(); err != nil {
		c.logger.Error("high bid cache invalidation failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}
