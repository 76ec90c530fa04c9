// Package cache - кеш профилей пользователей в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"darkchat/models"
)

const ProfileKeyPrefix = "profile:" // Префикс для ключей профиля в Redis

// ProfileCache - cache-aside для профилей. Нулевой указатель и nil-клиент
// означают "кеш выключен": все методы становятся no-op.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{rdb: rdb, ttl: ttl}
}

func (c *ProfileCache) enabled() bool {
	return c != nil && c.rdb != nil
}

func profileKey(uid string) string {
	return ProfileKeyPrefix + uid
}

// Get возвращает профиль из кеша; (nil, nil) при промахе
func (c *ProfileCache) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if !c.enabled() {
		return nil, nil
	}
	value, err := c.rdb.Get(ctx, profileKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached profile: %w", err)
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(value), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profile: %w", err)
	}
	return &profile, nil
}

func (c *ProfileCache) Set(ctx context.Context, profile models.UserProfile) error {
	if !c.enabled() {
		return nil
	}
	value, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, profileKey(profile.ID), value, c.ttl).Err()
}

func (c *ProfileCache) Invalidate(ctx context.Context, uid string) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Del(ctx, profileKey(uid)).Err()
}
