package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/config"
	"darkchat/models"
)

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := NewProfileCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	profile := models.UserProfile{
		ID:          "u1",
		Username:    "alice",
		DisplayName: "Alice",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, profile))
	assert.True(t, mr.Exists("profile:u1"))
	assert.Equal(t, time.Minute, mr.TTL("profile:u1"))

	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, profile, *got)

	require.NoError(t, c.Invalidate(ctx, "u1"))
	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfileCacheExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := NewProfileCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	require.NoError(t, c.Set(ctx, models.UserProfile{ID: "u1"}))
	mr.FastForward(2 * time.Minute)
	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	var c *ProfileCache
	got, err := c.Get(ctx, "u1")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, models.UserProfile{ID: "u1"}))
	assert.NoError(t, c.Invalidate(ctx, "u1"))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	conf := &config.ConfigSchema{}
	conf.Redis.Host = mr.Host()
	conf.Redis.Port = mustPort(t, mr.Port())

	client, err := NewRedisClient(context.Background(), conf)
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), conf)
	assert.Error(t, err)
}

func mustPort(t *testing.T, port string) int {
	t.Helper()
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return n
}
