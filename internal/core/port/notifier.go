package port

import (
	"context"
	"time"
)

// ConfirmationMessage carries the data needed to deliver an account
// confirmation token. The raw token is the secret; the notifier formats and
// delivers it but never stores it.
type ConfirmationMessage struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// PasswordResetMessage carries the data needed to deliver a password reset token.
type PasswordResetMessage struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Notifier delivers out-of-band messages to account holders. Delivery failure
// is non-fatal to the primary state transition but must be surfaced to callers.
type Notifier interface {
	SendAccountConfirmation(ctx context.Context, msg ConfirmationMessage) error
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}
