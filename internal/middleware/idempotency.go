// Package middleware provides shared HTTP middleware utilities.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

const (
	idempotencyWaitSteps = 50
	idempotencyWaitStep  = 100 * time.Millisecond
	maxCachedBody        = 1 << 20
)

// IdempotencyMiddleware enforces Idempotency-Key usage for unsafe methods.
type IdempotencyMiddleware struct {
	cache  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

// NewIdempotencyMiddleware constructs an IdempotencyMiddleware with a TTL.
func NewIdempotencyMiddleware(cache redis.Cmdable, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Require blocks duplicate POST/PUT/PATCH/DELETE requests with the same key.
// It expects the header: Idempotency-Key. Keys are scoped per user so two
// customers cannot replay each other's responses.
func (m *IdempotencyMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut &&
			r.Method != http.MethodPatch && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			jsonError(w, http.StatusBadRequest, "Idempotency-Key header required")
			return
		}

		scope := "anonymous"
		if userID, ok := UserIDFromContext(r.Context()); ok {
			scope = userID.String()
		}
		dataKey := fmt.Sprintf("idempotency:data:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)
		lockKey := fmt.Sprintf("idempotency:lock:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)

		// Fast path: cached response exists
		if handled := m.replayCached(w, r, dataKey); handled {
			m.logger.Debug("Idempotent replay", map[string]interface{}{"key": key})
			return
		}

		requestID := RequestIDFromContext(r.Context())
		if requestID == "" {
			requestID = "unknown"
		}

		ok, err := m.cache.SetNX(r.Context(), lockKey, requestID, m.ttl).Result()
		if err != nil {
			m.logger.Error("Idempotency lock failed", map[string]interface{}{"key": key, "error": err.Error()})
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !ok {
			// Another request in-flight; wait for it to complete before giving up.
			for i := 0; i < idempotencyWaitSteps; i++ {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(idempotencyWaitStep):
				}
				if handled := m.replayCached(w, r, dataKey); handled {
					return
				}
			}

			m.logger.Warn("Idempotency key still in flight", map[string]interface{}{"key": key})
			jsonError(w, http.StatusConflict, errors.ErrDuplicateRequest.Error())
			return
		}
		defer m.cache.Del(context.WithoutCancel(r.Context()), lockKey)

		cw := newCaptureWriter(w, maxCachedBody)
		next.ServeHTTP(cw, r)

		// Server errors are not cached so the client can retry with the same key.
		if cw.status >= http.StatusInternalServerError {
			return
		}
		if err := m.cacheResponse(r, dataKey, cw); err != nil {
			m.logger.Warn("Failed to cache idempotent response", map[string]interface{}{"key": key, "error": err.Error()})
		}
	})
}

type capturedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey string) bool {
	payload, err := m.cache.Get(r.Context(), dataKey).Bytes()
	if err != nil {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey string, cw *captureWriter) error {
	// Do not cache empty or oversized responses
	if cw.status == 0 || len(cw.buf) == 0 || cw.truncated {
		return nil
	}

	resp := capturedResponse{
		Status:  cw.status,
		Body:    cw.buf,
		Headers: cw.headers,
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	// Stored even if the client has gone away.
	return m.cache.Set(context.WithoutCancel(r.Context()), dataKey, payload, m.ttl).Err()
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	status    int
	headers   map[string]string
	truncated bool
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) Header() http.Header {
	return w.ResponseWriter.Header()
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if len(w.buf)+len(p) > w.limit {
		w.truncated = true
	}
	if space := w.limit - len(w.buf); space > 0 {
		toCopy := len(p)
		if toCopy > space {
			toCopy = space
		}
		w.buf = append(w.buf, p[:toCopy]...)
	}
	return w.ResponseWriter.Write(p)
}
