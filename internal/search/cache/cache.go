// Package cache is a Redis-backed result cache for contextual searches, with
// singleflight collapsing of concurrent identical queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jobstream-labs/jobstream/internal/search"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	pkgredis "github.com/jobstream-labs/jobstream/pkg/redis"
)

const keyPrefix = "search:"

// QueryCache caches search.Result values keyed by user, normalized query,
// and result count. Cache failures degrade to recomputation, never to a
// search error.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ search.QueryCache = (*QueryCache)(nil)

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("query-cache"),
	}
}

// Get returns the cached result for the key, if any.
func (c *QueryCache) Get(ctx context.Context, userID, query string, k int) (search.Result, bool) {
	key := c.buildKey(userID, query, k)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return search.Result{}, false
	}
	var result search.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		// A corrupt entry would fail every read until its TTL; drop it so
		// the next compute overwrites it.
		c.logger.Error("cache unmarshal failed, evicting entry", "key", key, "error", err)
		if delErr := c.client.Del(ctx, key); delErr != nil {
			c.logger.Error("cache eviction failed", "key", key, "error", delErr)
		}
		c.misses.Add(1)
		return search.Result{}, false
	}
	c.hits.Add(1)
	return result, true
}

// Set stores a result under the key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, userID, query string, k int, result search.Result) {
	key := c.buildKey(userID, query, k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and stores it. The
// boolean reports whether the result came from cache. Concurrent callers
// with the same key share one computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	userID, query string,
	k int,
	compute func() (search.Result, error),
) (search.Result, bool, error) {
	if result, ok := c.Get(ctx, userID, query, k); ok {
		return result, true, nil
	}
	key := c.buildKey(userID, query, k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, userID, query, k); ok {
			return result, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, userID, query, k, result)
		return result, nil
	})
	if err != nil {
		return search.Result{}, false, err
	}
	return val.(search.Result), false, nil
}

// InvalidateUser drops every cached result for one user, typically after a
// profile update changes their context.
func (c *QueryCache) InvalidateUser(ctx context.Context, userID string) error {
	pattern := keyPrefix + userID + ":*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache for user %s: %w", userID, err)
	}
	c.logger.Info("user cache invalidated", "user_id", userID, "keys_deleted", deleted)
	return nil
}

// InvalidateAll drops every cached search result, used after cycle runs that
// change the index contents.
func (c *QueryCache) InvalidateAll(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(userID, query string, k int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:k=%d", normalized, k)))
	return fmt.Sprintf("%s%s:%x", keyPrefix, userID, hash[:16])
}
