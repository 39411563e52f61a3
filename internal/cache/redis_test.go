package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/boxoffice/checkout/internal/platform/config"
)

func TestRedisBreakdownCacheReportsUnreachableServer(t *testing.T) {
	c := NewRedisBreakdownCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, "breakdown:missing")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}
