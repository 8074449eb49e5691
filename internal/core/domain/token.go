package domain

import "time"

// TokenPurpose binds a purpose token to the single operation it may redeem.
type TokenPurpose string

const (
	// PurposeEmailConfirmation tokens activate a pending account.
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	// PurposePasswordReset tokens authorize a password rewrite.
	PurposePasswordReset TokenPurpose = "password_reset"
)

// PurposeToken is a single-use, purpose-bound secret stored by hash.
// The raw value is returned to the caller once at issuance and never persisted.
type PurposeToken struct {
	ID        string
	AccountID string
	TokenHash string
	Purpose   TokenPurpose
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	Metadata  map[string]any
}

// IsExpired reports whether the token can still be redeemed at the given instant.
func (t PurposeToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// Consume marks the token as redeemed.
// Returns true when the token transitions from unused to used.
func (t *PurposeToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	return true
}
