//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c := New(goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}), time.Minute)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Ping(ctx))
	return c
}

type cached struct {
	IDs  []int64 `json:"ids"`
	Tier int     `json:"tier"`
}

func TestMatchCache_RoundTripAndInvalidate(t *testing.T) {
	c := startRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SetMatch(ctx, 1, "h1", cached{IDs: []int64{4, 2}, Tier: 1}))
	require.NoError(t, c.SetMatch(ctx, 1, "h2", cached{IDs: []int64{9}, Tier: 3}))
	require.NoError(t, c.SetMatch(ctx, 2, "h1", cached{IDs: []int64{7}, Tier: 2}))

	var got cached
	ok, err := c.GetMatch(ctx, 1, "h1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cached{IDs: []int64{4, 2}, Tier: 1}, got)

	ok, err = c.GetMatch(ctx, 1, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateTenant(ctx, 1))

	ok, err = c.GetMatch(ctx, 1, "h2", &got)
	require.NoError(t, err)
	assert.False(t, ok, "tenant 1 keys removed")

	ok, err = c.GetMatch(ctx, 2, "h1", &got)
	require.NoError(t, err)
	assert.True(t, ok, "other tenants untouched")
}
