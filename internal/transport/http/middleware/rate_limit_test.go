package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryAttemptStore is an in-process stand-in for the Redis attempt store.
type memoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	failWith error
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{attempts: map[string][]time.Time{}}
}

func (s *memoryAttemptStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *memoryAttemptStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	count := 0
	for _, at := range s.attempts[identifier] {
		if !at.Before(reference.Add(-window)) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *memoryAttemptStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(reference.Add(-window)) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *memoryAttemptStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return time.Time{}, false, s.failWith
	}
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if at.Before(reference.Add(-window)) || at.After(reference) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

func limitedRouter(t *testing.T, store *memoryAttemptStore, rule RateLimitRule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	limiter := NewRateLimiter(store, zap.NewNop())
	router.POST("/login", limiter.Limit(rule), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postLogin(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.9:41000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	store := newMemoryAttemptStore()
	router := limitedRouter(t, store, RateLimitRule{Name: "login", Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		rec := postLogin(router)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := postLogin(router)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_ThrottledResponse(t *testing.T) {
	store := newMemoryAttemptStore()
	router := limitedRouter(t, store, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute})

	require.Equal(t, http.StatusOK, postLogin(router).Code)

	rec := postLogin(router)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "about:blank", problem.Type)
	assert.Equal(t, http.StatusTooManyRequests, problem.Status)
	assert.Equal(t, "/login", problem.Instance)
}

func TestRateLimiter_DegradesOpenOnStoreFailure(t *testing.T) {
	store := newMemoryAttemptStore()
	store.failWith = errors.New("connection refused")
	router := limitedRouter(t, store, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		rec := postLogin(router)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimiter_SeparateIdentifiers(t *testing.T) {
	store := newMemoryAttemptStore()
	router := limitedRouter(t, store, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute})

	first := httptest.NewRequest(http.MethodPost, "/login", nil)
	first.RemoteAddr = "203.0.113.9:41000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/login", nil)
	second.RemoteAddr = "198.51.100.7:52000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code, "different client keeps its own budget")
}
