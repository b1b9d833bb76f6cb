// Package redis caches matcher results per tenant.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const defaultTTL = 5 * time.Minute

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return New(client, time.Duration(cfg.TTLSec)*time.Second), nil
}

// New wraps an existing connection.
func New(client *redis.Client, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{client: client, ttl: ttl}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func matchKey(tenantID int64, queryHash string) string {
	return fmt.Sprintf("match:%d:%s", tenantID, queryHash)
}

func (c *Client) SetMatch(ctx context.Context, tenantID int64, queryHash string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	err = c.client.Set(ctx, matchKey(tenantID, queryHash), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set match cache: %w", err)
	}

	logger.Debug("Match cached", zap.Int64("tenant_id", tenantID), zap.String("query_hash", queryHash))
	return nil
}

// GetMatch decodes the cached value into dst and reports whether it was
// present.
func (c *Client) GetMatch(ctx context.Context, tenantID int64, queryHash string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, matchKey(tenantID, queryHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get match cache: %w", err)
	}

	err = json.Unmarshal(data, dst)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	logger.Debug("Match cache hit", zap.Int64("tenant_id", tenantID), zap.String("query_hash", queryHash))
	return true, nil
}

// InvalidateTenant drops every cached match of the tenant.
func (c *Client) InvalidateTenant(ctx context.Context, tenantID int64) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("match:%d:*", tenantID), 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Tenant match cache invalidated", zap.Int64("tenant_id", tenantID), zap.Int("keys", deleted))
	return nil
}
