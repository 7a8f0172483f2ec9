package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ratelimit:socket:"

// RedisLimiter is a fixed-window limiter shared by every process that points
// at the same Redis, so a user cannot dodge the limit by reconnecting to
// another instance.
type RedisLimiter struct {
	rdb    *redis.Client
	config Config
}

func NewRedisLimiter(rdb *redis.Client, config Config) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, config: config}
}

// windowKey buckets key into the current window
func (l *RedisLimiter) windowKey(key string, now time.Time) string {
	bucket := now.UnixNano() / int64(l.config.Window)
	return keyPrefix + key + ":" + strconv.FormatInt(bucket, 10)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key, time.Now())

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.config.Window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.config.MaxRequests), nil
}
