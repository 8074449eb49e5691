package port

import (
	"context"
	"time"

	"github.com/dabananda/secure-account-api/internal/core/domain"
)

// TokenRepository manages purpose token records.
//
// Redeem is the single atomicity boundary of the token lifecycle: it must check
// existence, account binding, purpose, expiry, and the consumed flag, then mark
// the token used, all as one operation. Two concurrent redemptions of the same
// token must never both succeed.
type TokenRepository interface {
	Create(ctx context.Context, token domain.PurposeToken) error
	// Redeem atomically consumes the token identified by hash and returns it.
	// Failures are classified via repository sentinel errors (ErrNotFound,
	// ErrTokenExpired, ErrTokenConsumed, ErrTokenPurposeMismatch) so callers
	// can log diagnostics while presenting a uniform response outward.
	Redeem(ctx context.Context, tokenHash, accountID string, purpose domain.TokenPurpose, now time.Time) (*domain.PurposeToken, error)
	// DeleteExpired evicts tokens whose expiry predates the cutoff. Correctness
	// never depends on this sweep; it only bounds storage growth.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
