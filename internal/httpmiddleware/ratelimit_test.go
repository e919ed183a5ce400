package httpmiddleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRefill(t *testing.T) {
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return clock }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "keys are independent")

	clock = clock.Add(30 * time.Second)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"), "refill is capped at capacity")
}

func TestTokenBucketSweepsIdleClients(t *testing.T) {
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(120, 120)
	l.now = func() time.Time { return clock }

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Len(t, l.state, 100)

	clock = clock.Add(2 * time.Minute)
	assert.True(t, l.allow("10.0.1.1"))
	assert.Len(t, l.state, 101, "buckets younger than the idle window stay")

	clock = clock.Add(10 * time.Minute)
	assert.True(t, l.allow("10.0.1.2"))
	assert.Len(t, l.state, 1)
	assert.Contains(t, l.state, "10.0.1.2")
}

func TestTokenBucketSweepKeepsLimitedClients(t *testing.T) {
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(1, 1)
	l.now = func() time.Time { return clock }

	assert.True(t, l.allow("a"))
	clock = clock.Add(30 * time.Second)
	assert.False(t, l.allow("a"))

	clock = clock.Add(2 * time.Minute)
	l.sweep(clock)
	assert.Contains(t, l.state, "a")
}

type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestRedisWindow(t *testing.T) {
	fc := newFakeCounter()
	clock := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	l := newRedisWindow(fc, 2)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}
	require.Len(t, fc.expires, 1)
	for _, ttl := range fc.expires {
		assert.Equal(t, time.Minute, ttl)
	}

	clock = clock.Add(time.Minute)
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "new window")
}

func TestRedisWindowError(t *testing.T) {
	fc := newFakeCounter()
	fc.err = errors.New("dial tcp: connection refused")
	l := newRedisWindow(fc, 2)

	_, err := l.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}

type stubLimiter struct {
	ok  bool
	err error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.ok, s.err }

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		limiter Limiter
		status  int
	}{
		{name: "allowed", limiter: stubLimiter{ok: true}, status: http.StatusOK},
		{name: "limited", limiter: stubLimiter{ok: false}, status: http.StatusTooManyRequests},
		{name: "limiter down", limiter: stubLimiter{err: errors.New("redis down")}, status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimit(tc.limiter))
			r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusTooManyRequests {
				assert.JSONEq(t, `{"error":"rate limit"}`, w.Body.String())
			}
		})
	}
}

func TestRateLimitWithTokenBucket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewSimpleTokenBucket(1, 1)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
