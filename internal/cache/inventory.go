package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key builders. Every cached value lives under one of these prefixes so
// invalidation stays greppable.
func UserKey(id uint) string            { return fmt.Sprintf("user:%d", id) }
func CommunityBySlugKey(s string) string { return fmt.Sprintf("community:slug:%s", s) }
func UnreadCountKey(userID uint) string  { return fmt.Sprintf("notifications:unread:%d", userID) }

const (
	UserTTL        = 5 * time.Minute
	CommunityTTL   = 2 * time.Minute
	UnreadCountTTL = 30 * time.Second
)

// ErrMiss is returned when a key is absent or the cache is unavailable.
var ErrMiss = errors.New("cache miss")

// GetJSON fetches key and unmarshals it into dest.
func GetJSON(ctx context.Context, key string, dest any) error {
	if client == nil {
		return ErrMiss
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON marshals value and stores it under key with the given TTL.
// A nil client or marshal failure is silently ignored; the cache is
// best effort.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.Set(ctx, key, raw, ttl)
}

// Invalidate removes the given keys.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}
