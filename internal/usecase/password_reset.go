package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/config"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
	"github.com/dabananda/secure-account-api/internal/infra/security"
	"github.com/dabananda/secure-account-api/internal/repository"
)

const (
	passwordResetRateLimitScope = "password_reset"

	defaultResetTTL = time.Hour
)

var (
	// ErrAccountNotFound indicates the email has no account. Transport layers
	// mask it behind a generic success so responses never reveal existence.
	ErrAccountNotFound = errors.New("account not found")
	// ErrResetTokenInvalid indicates the reset token is unknown, consumed, or
	// bound to a different account or purpose.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrResetTokenExpired indicates the reset token exists but is expired.
	ErrResetTokenExpired = errors.New("password reset token expired")
)

// PasswordResetService coordinates reset initiation and completion.
type PasswordResetService struct {
	cfg        *config.AppConfig
	accounts   port.AccountRepository
	tokens     port.TokenRepository
	rateLimits port.RateLimitStore
	notifier   port.Notifier
	events     port.EventPublisher
	hasher     *security.PasswordHasher
	logger     *zap.Logger

	now      func() time.Time
	resetTTL time.Duration
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	rateLimits port.RateLimitStore,
	notifier port.Notifier,
	events port.EventPublisher,
	hasher *security.PasswordHasher,
	log *zap.Logger,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}

	ttl := defaultResetTTL
	if cfg != nil && cfg.Tokens.ResetTTL > 0 {
		ttl = cfg.Tokens.ResetTTL
	}

	return &PasswordResetService{
		cfg:        cfg,
		accounts:   accounts,
		tokens:     tokens,
		rateLimits: rateLimits,
		notifier:   notifier,
		events:     events,
		hasher:     hasher,
		logger:     log,
		now:        time.Now,
		resetTTL:   ttl,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL allows tests to override the reset token TTL.
func (s *PasswordResetService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
}

// RequestResetInput carries a forgot-password request.
type RequestResetInput struct {
	Email string
	IP    string
}

// ResetRequest describes the issued reset artifact.
type ResetRequest struct {
	AccountID string
	RequestID string
	ExpiresAt time.Time
	Notified  bool
}

// RequestReset issues a password reset token for the account. Multiple
// outstanding tokens may coexist; each is independently redeemable until
// consumed or expired. ErrAccountNotFound must be masked by the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, input RequestResetInput) (*ResetRequest, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now().UTC()
	limit := 0
	window := time.Duration(0)
	if s.cfg != nil {
		limit = s.cfg.RateLimit.PasswordResetMaxAttempts
		window = s.cfg.RateLimit.WindowDuration
	}
	if err := enforceRateLimit(ctx, s.rateLimits, s.logger, passwordResetRateLimitScope, email, limit, window, now); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("reset requested for unknown account",
				zap.String("email", logger.MaskEmail(email)))
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	requestID := uuid.NewString()
	raw, expiresAt, err := s.issueResetToken(ctx, account.ID, email, requestID, input.IP, now)
	if err != nil {
		return nil, err
	}

	s.publishResetRequestedEvent(ctx, account, requestID, email, input.IP, now, expiresAt)

	result := &ResetRequest{
		AccountID: account.ID,
		RequestID: requestID,
		ExpiresAt: expiresAt,
		Notified:  true,
	}

	if s.notifier != nil {
		msg := port.PasswordResetMessage{Email: email, Token: raw, ExpiresAt: expiresAt}
		if err := s.notifier.SendPasswordReset(ctx, msg); err != nil {
			s.logger.Warn("reset delivery failed",
				zap.String("email", logger.MaskEmail(email)),
				zap.Error(err),
			)
			result.Notified = false
			return result, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
		}
	}

	return result, nil
}

// ResetPasswordInput finalizes a password reset.
type ResetPasswordInput struct {
	Email       string
	Token       string
	NewPassword string
	IP          string
}

// ResetPassword redeems a reset token and rehashes the password. The password
// policy runs before redemption so a weak password does not burn the token.
// The reuse check against the stored hash runs only after redemption: before
// proof of token possession, comparing the candidate against the current
// password would let anyone with a bogus token tell a correct guess apart
// from a wrong one. ErrAccountNotFound must be masked by the caller;
// token-validity failures for known accounts are surfaced as-is.
func (s *PasswordResetService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	rawToken := strings.TrimSpace(input.Token)
	if rawToken == "" {
		return ErrResetTokenInvalid
	}
	newPassword := strings.TrimSpace(input.NewPassword)
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("reset for unknown account",
				zap.String("email", logger.MaskEmail(email)))
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.validatePasswordPolicy(newPassword, *account); err != nil {
		return err
	}

	now := s.now().UTC()
	hash := security.HashToken(rawToken)

	token, err := s.tokens.Redeem(ctx, hash, account.ID, domain.PurposePasswordReset, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenExpired):
			return ErrResetTokenExpired
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, repository.ErrTokenConsumed),
			errors.Is(err, repository.ErrTokenPurposeMismatch):
			s.logger.Info("reset token rejected",
				zap.String("account_id", account.ID),
				zap.String("reason", err.Error()),
			)
			return ErrResetTokenInvalid
		default:
			return fmt.Errorf("redeem reset token: %w", err)
		}
	}

	same, err := s.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("compare new password: %w", err)
	}
	if same {
		return fmt.Errorf("%w: new password must differ from the previous one", ErrWeakPassword)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash, security.PasswordAlgo, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChangedEvent(ctx, account.ID, token.ID, input.IP, now)

	return nil
}

// SweepExpiredTokens evicts expired purpose tokens. Correctness does not
// depend on the sweep; it only bounds table growth.
func (s *PasswordResetService) SweepExpiredTokens(ctx context.Context) (int, error) {
	removed, err := s.tokens.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired tokens swept", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *PasswordResetService) issueResetToken(ctx context.Context, accountID, email, requestID, ip string, now time.Time) (string, time.Time, error) {
	raw, err := security.GenerateSecureToken(security.DefaultTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := now.Add(s.resetTTL)
	metadata := map[string]any{
		"request_id": requestID,
		"contact":    email,
	}
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		metadata["ip"] = trimmed
	}

	token := domain.PurposeToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Purpose:   domain.PurposePasswordReset,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Metadata:  metadata,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return "", time.Time{}, fmt.Errorf("store reset token: %w", err)
	}

	return raw, expiresAt, nil
}

func (s *PasswordResetService) validatePasswordPolicy(password string, account domain.Account) error {
	minLength := 8
	minClasses := 3
	minScore := 0
	if s.cfg != nil {
		if s.cfg.Password.MinLength > 0 {
			minLength = s.cfg.Password.MinLength
		}
		if s.cfg.Password.MinCharClasses > 0 {
			minClasses = s.cfg.Password.MinCharClasses
		}
		minScore = s.cfg.Password.MinStrengthScore
	}

	validator := security.NewPasswordValidator(
		security.MinLengthRule(minLength),
		security.CharacterClassesRule(minClasses),
		security.StrengthRule(minScore, account.Email),
	)
	if err := validator.Validate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	return nil
}

func (s *PasswordResetService) publishResetRequestedEvent(ctx context.Context, account *domain.Account, requestID, email, ip string, requestedAt, expiresAt time.Time) {
	if s.events == nil || account == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		RequestID:         requestID,
		RequestedAt:       requestedAt,
		MaskedDestination: logger.MaskEmail(email),
		IPAddress:         stringPtrOrNil(ip),
		ExpiresAt:         expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish reset requested failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChangedEvent(ctx context.Context, accountID, tokenID, ip string, changedAt time.Time) {
	if s.events == nil {
		return
	}

	metadata := map[string]any{"reset_token_id": tokenID}
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		metadata["ip"] = trimmed
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		ChangedAt: changedAt,
		ChangedBy: accountID,
		Metadata:  metadata,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}
