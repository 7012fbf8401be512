package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/crawlcore/internal/robots/cache"
)

/*
RedisCache implements the teacher's robots cache.Cache port
(Get(key)/Put(key,value)) against Redis instead of an in-process map, so
a robots.txt fetch by one worker in the fleet is visible to every other
worker on the same domain. Kept as the exact same two-method interface
the teacher designed for single-process caching — only the backing store
changed.
*/

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

// NewRedisCache builds a cache.Cache backed by client, expiring entries
// after ttl. ctx is used for the Get/Put calls because the teacher's
// cache.Cache port predates context-aware signatures; a background
// context with the client's own dial timeout is the closest faithful
// adaptation without changing that interface.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, ctx: context.Background()}
}

func (r *RedisCache) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Put(key string, value string) {
	r.client.Set(r.ctx, key, value, r.ttl)
}

var _ cache.Cache = (*RedisCache)(nil)
