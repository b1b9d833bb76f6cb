package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/cache/redis"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const invalidateTimeout = 5 * time.Second

// CacheInvalidator drops a tenant's cached match results after its knowledge
// changes.
type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID int64) error
}

// openCache returns nil when redis is disabled or unreachable. The returned
// close func is always safe to call.
func openCache(cfg *config.Config) (CacheInvalidator, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, cached matches expire on their own TTL", zap.Error(err))
		return nil, func() {}
	}
	return client, func() { client.Close() }
}

func invalidate(ctx context.Context, inv CacheInvalidator, tenantID int64) {
	if inv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := inv.InvalidateTenant(ctx, tenantID); err != nil {
		logger.Warn("Failed to invalidate match cache", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}
