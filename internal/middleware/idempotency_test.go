package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payvost/pkg/logger"
)

func redisOrSkip(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIdempotencyMiddleware_ConcurrentRequests(t *testing.T) {
	rdb := redisOrSkip(t)
	mw := NewIdempotencyMiddleware(rdb, 10*time.Second, logger.NewNop())

	var calls int32
	slowHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	wrapped := mw.Require(slowHandler)
	key := "test-key-" + uuid.NewString()

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * 100 * time.Millisecond)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-intents", nil)
			req.Header.Set("Idempotency-Key", key)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated}, codes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_ScopedPerUser(t *testing.T) {
	rdb := redisOrSkip(t)
	mw := NewIdempotencyMiddleware(rdb, 10*time.Second, logger.NewNop())

	var calls int32
	wrapped := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("done"))
	}))
	key := "shared-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req = req.WithContext(WithUser(req.Context(), uuid.New(), "", ""))
		req.Header.Set("Idempotency-Key", key)
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_ReleasesLockAfterClientDisconnect(t *testing.T) {
	rdb := redisOrSkip(t)
	mw := NewIdempotencyMiddleware(rdb, time.Minute, logger.NewNop())

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	wrapped := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		cancel()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	key := "disconnect-" + uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/x", nil).WithContext(ctx)
	req.Header.Set("Idempotency-Key", key)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	lockKey := "idempotency:lock:anonymous:POST:/x:" + key
	exists, err := rdb.Exists(context.Background(), lockKey).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	retry := httptest.NewRequest(http.MethodPost, "/x", nil)
	retry.Header.Set("Idempotency-Key", key)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, retry)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_RequiresKey(t *testing.T) {
	mw := NewIdempotencyMiddleware(nil, time.Minute, logger.NewNop())
	wrapped := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Safe methods pass straight through.
	get := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w = httptest.NewRecorder()
	get.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiter_Blocks(t *testing.T) {
	rdb := redisOrSkip(t)
	rl := NewRateLimiter(rdb, "test-"+uuid.NewString(), 2, time.Minute)
	wrapped := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		wrapped.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}
