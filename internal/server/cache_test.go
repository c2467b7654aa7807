package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/creditlens/loanmarket-api/internal/config"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestNewCache_NoAddrFallsBackToMemory(t *testing.T) {
	c := NewCache(config.RedisConfig{})
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}

func TestNewCache_UnreachableRedisFallsBackToMemory(t *testing.T) {
	c := NewCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}
