package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

// checkAndIncrementScript performs the compare and increment server-side so
// concurrent callers sharing a key cannot race past the limit. Scripts
// execute atomically in Redis.
var checkAndIncrementScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
	return {current, 0}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return {current, 1}
`)

type store struct {
	client *redis.Client
}

// New returns a redis backed ratelimit.Store.
func New(client *redis.Client) ratelimit.Store {
	return &store{
		client: client,
	}
}

// CheckAndIncrement implements ratelimit.Store.CheckAndIncrement
func (s *store) CheckAndIncrement(ctx context.Context, dimension ratelimit.Dimension, key string, now time.Time, window time.Duration, limit uint64) (uint64, bool, error) {
	if limit == 0 || window < time.Second {
		return 0, false, ratelimit.ErrInvalidLimit
	}

	// The bucket is part of the key, so the TTL only needs to outlive the
	// window. Stale buckets are garbage either way.
	counterKey := fmt.Sprintf("ratelimit:%s:%s:%d", dimension.String(), key, ratelimit.WindowBucket(now, window))
	windowSeconds := int64(window / time.Second)

	res, err := checkAndIncrementScript.Run(ctx, s.client, []string{counterKey}, limit, windowSeconds).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script result length %d", len(res))
	}

	return uint64(res[0]), res[1] == 1, nil
}
