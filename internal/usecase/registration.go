package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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
	registerRateLimitScope = "register"

	defaultConfirmationTTL = 24 * time.Hour
)

var (
	// ErrWeakPassword indicates the password does not satisfy the acceptance policy.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")
	// ErrDuplicateAccount indicates the email already has an account.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrConfirmationFailed is the single outward failure for email confirmation.
	// Expired, unknown, consumed, and mismatched tokens all collapse into it so
	// the response never reveals token state.
	ErrConfirmationFailed = errors.New("confirmation failed")
	// ErrNotificationFailed indicates the account state was committed but the
	// out-of-band message could not be delivered.
	ErrNotificationFailed = errors.New("notification delivery failed")
)

// RegistrationService handles account creation and email confirmation.
type RegistrationService struct {
	cfg        *config.AppConfig
	accounts   port.AccountRepository
	tokens     port.TokenRepository
	roles      port.RoleRepository
	notifier   port.Notifier
	events     port.EventPublisher
	rateLimits port.RateLimitStore
	hasher     *security.PasswordHasher
	logger     *zap.Logger

	now             func() time.Time
	confirmationTTL time.Duration
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	roles port.RoleRepository,
	notifier port.Notifier,
	events port.EventPublisher,
	rateLimits port.RateLimitStore,
	hasher *security.PasswordHasher,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}

	ttl := defaultConfirmationTTL
	if cfg != nil && cfg.Tokens.ConfirmationTTL > 0 {
		ttl = cfg.Tokens.ConfirmationTTL
	}

	return &RegistrationService{
		cfg:             cfg,
		accounts:        accounts,
		tokens:          tokens,
		roles:           roles,
		notifier:        notifier,
		events:          events,
		rateLimits:      rateLimits,
		hasher:          hasher,
		logger:          log,
		now:             time.Now,
		confirmationTTL: ttl,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithConfirmationTTL allows tests to override the confirmation token TTL.
func (s *RegistrationService) WithConfirmationTTL(ttl time.Duration) {
	if ttl > 0 {
		s.confirmationTTL = ttl
	}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email    string
	Password string
	IP       string
}

// RegisterResult reports the created account and whether the confirmation
// message reached the notifier.
type RegisterResult struct {
	Account  domain.Account
	Notified bool
}

// Register creates a pending account, grants the base role, and issues an
// email confirmation token. The account write commits before the notification
// attempt; a delivery failure surfaces as ErrNotificationFailed without
// rolling anything back.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	password := strings.TrimSpace(input.Password)
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	now := s.now().UTC()
	limit := 0
	window := time.Duration(0)
	if s.cfg != nil {
		limit = s.cfg.RateLimit.RegisterMaxAttempts
		window = s.cfg.RateLimit.WindowDuration
	}
	if err := enforceRateLimit(ctx, s.rateLimits, s.logger, registerRateLimitScope, rateLimitIdentifier(email, input.IP), limit, window, now); err != nil {
		return nil, err
	}

	if err := s.passwordPolicy(email).Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := domain.Account{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       passwordHash,
		PasswordAlgo:       security.PasswordAlgo,
		Status:             domain.AccountStatusPending,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.grantBaseRole(ctx, account.ID, now); err != nil {
		return nil, err
	}

	rawToken, expiresAt, err := s.issueConfirmationToken(ctx, account.ID, email, input.IP, now)
	if err != nil {
		return nil, err
	}

	s.publishRegisteredEvent(ctx, account)

	result := &RegisterResult{Account: sanitizeAccount(account), Notified: true}

	if s.notifier != nil {
		msg := port.ConfirmationMessage{Email: email, Token: rawToken, ExpiresAt: expiresAt}
		if err := s.notifier.SendAccountConfirmation(ctx, msg); err != nil {
			s.logger.Warn("confirmation delivery failed",
				zap.String("email", logger.MaskEmail(email)),
				zap.Error(err),
			)
			result.Notified = false
			return result, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
		}
	}

	return result, nil
}

// ConfirmEmail redeems an email confirmation token and activates the account.
// Every failure path returns ErrConfirmationFailed; the internal cause is
// logged for diagnostics only.
func (s *RegistrationService) ConfirmEmail(ctx context.Context, email, rawToken string) error {
	email = domain.NormalizeEmail(email)
	rawToken = strings.TrimSpace(rawToken)
	if email == "" || rawToken == "" {
		return ErrConfirmationFailed
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("confirmation for unknown account",
				zap.String("email", logger.MaskEmail(email)))
			return ErrConfirmationFailed
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	hash := security.HashToken(rawToken)

	if _, err := s.tokens.Redeem(ctx, hash, account.ID, domain.PurposeEmailConfirmation, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, repository.ErrTokenExpired),
			errors.Is(err, repository.ErrTokenConsumed),
			errors.Is(err, repository.ErrTokenPurposeMismatch):
			s.logger.Info("confirmation token rejected",
				zap.String("account_id", account.ID),
				zap.String("reason", err.Error()),
			)
			return ErrConfirmationFailed
		default:
			return fmt.Errorf("redeem confirmation token: %w", err)
		}
	}

	if account.IsConfirmed() {
		return nil
	}

	if err := s.accounts.UpdateStatus(ctx, account.ID, domain.AccountStatusActive, now); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}

	s.publishConfirmedEvent(ctx, account.ID, now)

	return nil
}

func (s *RegistrationService) grantBaseRole(ctx context.Context, accountID string, at time.Time) error {
	if s.roles == nil {
		return nil
	}

	role, err := s.roles.GetByName(ctx, domain.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("base role missing, skipping grant", zap.String("role", domain.RoleUser))
			return nil
		}
		return fmt.Errorf("lookup base role: %w", err)
	}

	if err := s.roles.AssignToAccount(ctx, accountID, role.ID, at); err != nil {
		return fmt.Errorf("grant base role: %w", err)
	}

	return nil
}

func (s *RegistrationService) issueConfirmationToken(ctx context.Context, accountID, email, ip string, now time.Time) (string, time.Time, error) {
	raw, err := security.GenerateSecureToken(security.DefaultTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate confirmation token: %w", err)
	}

	expiresAt := now.Add(s.confirmationTTL)
	metadata := map[string]any{"contact": email}
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		metadata["ip"] = trimmed
	}

	token := domain.PurposeToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Purpose:   domain.PurposeEmailConfirmation,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Metadata:  metadata,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return "", time.Time{}, fmt.Errorf("store confirmation token: %w", err)
	}

	return raw, expiresAt, nil
}

func (s *RegistrationService) passwordPolicy(userInputs ...string) *security.PasswordValidator {
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

	return security.NewPasswordValidator(
		security.MinLengthRule(minLength),
		security.CharacterClassesRule(minClasses),
		security.StrengthRule(minScore, userInputs...),
	)
}

func (s *RegistrationService) publishRegisteredEvent(ctx context.Context, account domain.Account) {
	if s.events == nil {
		return
	}

	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		Email:        account.Email,
		Status:       string(account.Status),
		RegisteredAt: account.RegisteredAt,
	}
	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *RegistrationService) publishConfirmedEvent(ctx context.Context, accountID string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.AccountConfirmedEvent{
		EventID:     uuid.NewString(),
		AccountID:   accountID,
		ConfirmedAt: at,
	}
	if err := s.events.PublishAccountConfirmed(ctx, event); err != nil {
		s.logger.Warn("publish account confirmed failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}

func sanitizeAccount(account domain.Account) domain.Account {
	account.PasswordHash = ""
	return account
}

func rateLimitIdentifier(email, ip string) string {
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		return trimmed
	}
	return email
}
