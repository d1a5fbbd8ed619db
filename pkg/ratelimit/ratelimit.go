package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter implements a fixed-window counter on Redis. The public
// unsubscribe/resubscribe endpoints are unauthenticated, so callers are
// throttled per client IP.
type Limiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

func New(client *goredis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: limit, window: window}
}

var allowScript = goredis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// Allow reports whether the caller identified by key may proceed. Fails
// open on Redis errors so an outage never blocks opt-outs.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:optout", key)
	current, err := allowScript.Run(ctx, l.client, []string{redisKey},
		l.limit, l.window.Milliseconds()).Int64()
	if err != nil {
		return true, err
	}
	return current <= int64(l.limit), nil
}
