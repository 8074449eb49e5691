package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
)

// LoggingNotifier records deliveries in the log instead of sending mail.
// Used in development when SMTP is disabled. Tokens are masked so a shared
// log stream cannot be used to take over accounts.
type LoggingNotifier struct {
	log *zap.Logger
}

// NewLoggingNotifier constructs a log-only notifier.
func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

func (n *LoggingNotifier) SendAccountConfirmation(_ context.Context, msg port.ConfirmationMessage) error {
	n.log.Info("account confirmation issued",
		zap.String("email", logger.MaskEmail(msg.Email)),
		zap.String("token", logger.MaskString(msg.Token)),
		zap.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

func (n *LoggingNotifier) SendPasswordReset(_ context.Context, msg port.PasswordResetMessage) error {
	n.log.Info("password reset issued",
		zap.String("email", logger.MaskEmail(msg.Email)),
		zap.String("token", logger.MaskString(msg.Token)),
		zap.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

var _ port.Notifier = (*LoggingNotifier)(nil)
