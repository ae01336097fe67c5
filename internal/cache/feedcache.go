package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripwind/dealfeed/internal/feed"
)

// retentionTTL keeps entries well past the 10-minute freshness window so a
// failed rebuild can fall back to a stale list.
const retentionTTL = time.Hour

// FeedCache stores the merged candidate list per origin. Freshness is the
// composer's call; this layer only retains and evicts.
type FeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFeedCache constructs a FeedCache with the production retention TTL.
func NewFeedCache(client *redis.Client) *FeedCache {
	return &FeedCache{client: client, ttl: retentionTTL}
}

// NewFeedCacheWithTTL constructs a FeedCache with a custom retention TTL
// (for tests).
func NewFeedCacheWithTTL(client *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{client: client, ttl: ttl}
}

// key returns the Redis key for the given origin.
func key(origin string) string {
	return "feed:" + strings.ToUpper(strings.TrimSpace(origin))
}

// Get retrieves the cached entry for an origin.
// Returns nil, nil on a cache miss (not an error).
func (c *FeedCache) Get(ctx context.Context, origin string) (*feed.CacheEntry, error) {
	val, err := c.client.Get(ctx, key(origin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("feed cache get for origin %s: %w", origin, err)
	}

	var entry feed.CacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling cached feed for origin %s: %w", origin, err)
	}

	return &entry, nil
}

// Set stores the entry for an origin with the retention TTL.
func (c *FeedCache) Set(ctx context.Context, origin string, entry *feed.CacheEntry) error {
	if entry == nil {
		return nil
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling feed entry for origin %s: %w", origin, err)
	}

	if err := c.client.Set(ctx, key(origin), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("feed cache set for origin %s: %w", origin, err)
	}

	return nil
}

// Delete removes the cached entry for an origin.
func (c *FeedCache) Delete(ctx context.Context, origin string) error {
	if err := c.client.Del(ctx, key(origin)).Err(); err != nil {
		return fmt.Errorf("feed cache delete for origin %s: %w", origin, err)
	}
	return nil
}
