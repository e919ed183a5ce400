package httpmiddleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisWindow is a fixed one-minute window limiter shared by every API
// instance pointed at the same Redis.
type RedisWindow struct {
	client    counter
	perMinute int
	prefix    string
	now       func() time.Time
}

// NewRedisWindow allows perMinute requests per key in each calendar minute.
func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return newRedisWindow(client, perMinute)
}

func newRedisWindow(client counter, perMinute int) *RedisWindow {
	return &RedisWindow{
		client:    client,
		perMinute: perMinute,
		prefix:    "faceattend:ratelimit:",
		now:       time.Now,
	}
}

func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().Unix() / int64(window/time.Second)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, slot)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.perMinute), nil
}
