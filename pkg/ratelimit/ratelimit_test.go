package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, limit, window), mr
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("4th request should be blocked")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "1.1.1.1"); !ok {
		t.Fatal("first key should be allowed")
	}
	if ok, _ := l.Allow(ctx, "2.2.2.2"); !ok {
		t.Fatal("second key should not share the first key's window")
	}
	if ok, _ := l.Allow(ctx, "1.1.1.1"); ok {
		t.Fatal("first key should now be blocked")
	}
}

func TestAllow_WindowResets(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("first request should be allowed")
	}
	if ok, _ := l.Allow(ctx, "1.2.3.4"); ok {
		t.Fatal("second request should be blocked")
	}

	mr.FastForward(2 * time.Minute)

	if ok, _ := l.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestAllow_FailsOpenOnRedisError(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	ok, err := l.Allow(context.Background(), "1.2.3.4")
	if err == nil {
		t.Fatal("expected redis error")
	}
	if !ok {
		t.Fatal("limiter should fail open when redis is unavailable")
	}
}
