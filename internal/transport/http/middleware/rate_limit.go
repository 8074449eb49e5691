package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
)

// IdentifierFunc extracts the rate-limit identity from a request.
type IdentifierFunc func(c *gin.Context) string

// ClientIPIdentifier keys the limit on the caller's IP address.
func ClientIPIdentifier(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimitRule describes a per-route request budget.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// ProblemDetails is an RFC 9457 error body for throttled requests.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// RateLimiter throttles requests per rule using a shared attempt store.
// Store failures never block a request.
type RateLimiter struct {
	store port.RateLimitStore
	log   *zap.Logger
}

func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, log: log}
}

// Limit applies the given rule to the route.
func (rl *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	identify := rule.Identifier
	if identify == nil {
		identify = ClientIPIdentifier
	}

	return func(c *gin.Context) {
		id := identify(c)
		if id == "" {
			c.Next()
			return
		}

		key := rule.Name + ":" + id
		now := time.Now()

		allowed, retryAfter := rl.evaluateRule(c, rule, key, now)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
				Type:     "about:blank",
				Title:    "Too Many Requests",
				Status:   http.StatusTooManyRequests,
				Detail:   fmt.Sprintf("rate limit exceeded, retry in %ds", int(retryAfter.Seconds())+1),
				Instance: c.Request.URL.Path,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluateRule(c *gin.Context, rule RateLimitRule, key string, now time.Time) (bool, time.Duration) {
	ctx := c.Request.Context()

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		rl.log.Warn("rate limit trim failed, allowing request",
			zap.String("rule", rule.Name),
			zap.String("ip", logger.MaskIP(c.ClientIP())),
			zap.Error(err))
		return true, 0
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		rl.log.Warn("rate limit count failed, allowing request",
			zap.String("rule", rule.Name),
			zap.Error(err))
		return true, 0
	}

	if count >= rule.Limit {
		retryAfter := rule.Window
		if oldest, ok, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err == nil && ok {
			retryAfter = oldest.Add(rule.Window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return false, retryAfter
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		rl.log.Warn("rate limit record failed",
			zap.String("rule", rule.Name),
			zap.Error(err))
	}

	remaining := rule.Limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

	return true, 0
}
