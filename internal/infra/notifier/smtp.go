package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/config"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
)

// SMTPNotifier delivers confirmation and reset messages over SMTP. Message
// bodies embed a link built from the configured base URL; the raw token only
// travels inside that link.
type SMTPNotifier struct {
	cfg config.SMTPSettings
	log *zap.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier constructs a notifier from SMTP settings.
func NewSMTPNotifier(cfg config.SMTPSettings, log *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:  cfg,
		log:  log,
		send: smtp.SendMail,
	}
}

// SendAccountConfirmation delivers the email confirmation link.
func (n *SMTPNotifier) SendAccountConfirmation(ctx context.Context, msg port.ConfirmationMessage) error {
	link := n.buildLink("/api/account/confirm-email", msg.Email, msg.Token)
	body := confirmationBody(link, msg.ExpiresAt)
	return n.deliver(ctx, msg.Email, "Confirm your account", body)
}

// SendPasswordReset delivers the password reset link.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, msg port.PasswordResetMessage) error {
	link := n.buildLink("/api/account/reset-password", msg.Email, msg.Token)
	body := passwordResetBody(link, msg.ExpiresAt)
	return n.deliver(ctx, msg.Email, "Reset your password", body)
}

func (n *SMTPNotifier) buildLink(path, email, token string) string {
	base := strings.TrimSuffix(n.cfg.BaseURL, "/")
	query := url.Values{}
	query.Set("email", email)
	query.Set("token", token)
	return fmt.Sprintf("%s%s?%s", base, path, query.Encode())
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := n.cfg.FromAddress
	headers := []string{
		fmt.Sprintf("From: %s <%s>", n.cfg.FromName, from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}
	payload := []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody + "\r\n")

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, from, []string{to}, payload); err != nil {
		n.log.Error("mail delivery failed",
			zap.String("to", logger.MaskEmail(to)),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}

	n.log.Info("mail delivered",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}

func confirmationBody(link string, expiresAt time.Time) string {
	return fmt.Sprintf(
		`<html><body>
<p>Welcome! Please confirm your account by clicking the link below.</p>
<p><a href=%q>Confirm my account</a></p>
<p>The link expires at %s. If you did not create an account, ignore this message.</p>
</body></html>`,
		link, expiresAt.UTC().Format(time.RFC1123),
	)
}

func passwordResetBody(link string, expiresAt time.Time) string {
	return fmt.Sprintf(
		`<html><body>
<p>A password reset was requested for your account.</p>
<p><a href=%q>Reset my password</a></p>
<p>The link expires at %s and can be used once. If you did not request a reset, ignore this message.</p>
</body></html>`,
		link, expiresAt.UTC().Format(time.RFC1123),
	)
}

var _ port.Notifier = (*SMTPNotifier)(nil)
