package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/port"
)

// RateLimitExceededError reports that a sliding-window limit was hit for the
// given scope. RetryAfter is zero when the window boundary is unknown.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// enforceRateLimit applies the sliding-window policy for one scope and
// identifier. Store failures degrade open: the operation proceeds and the
// failure is logged, so an unavailable Redis never locks out logins.
func enforceRateLimit(ctx context.Context, store port.RateLimitStore, log *zap.Logger, scope, identifier string, limit int, window time.Duration, now time.Time) error {
	if store == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Hour
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil
	}
	key := fmt.Sprintf("%s:%s", scope, identifier)

	if err := store.TrimWindow(ctx, key, window, now); err != nil {
		log.Warn("rate limit trim failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	count, err := store.CountAttempts(ctx, key, window, now)
	if err != nil {
		log.Warn("rate limit count failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	if count >= limit {
		retryAfter := time.Duration(0)
		if oldest, ok, err := store.OldestAttempt(ctx, key, window, now); err == nil && ok {
			if reset := oldest.Add(window); reset.After(now) {
				retryAfter = reset.Sub(now)
			}
		} else if err != nil {
			log.Warn("rate limit oldest lookup failed", zap.String("scope", scope), zap.Error(err))
		}
		return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
	}

	if err := store.RecordAttempt(ctx, key, now); err != nil {
		log.Warn("rate limit record failed", zap.String("scope", scope), zap.Error(err))
	}

	return nil
}

func stringPtrOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
