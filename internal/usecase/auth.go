package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/config"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
	"github.com/dabananda/secure-account-api/internal/infra/security"
	"github.com/dabananda/secure-account-api/internal/repository"
)

const loginRateLimitScope = "login"

var (
	// ErrInvalidCredentials is the single outward failure for login. Unknown
	// account, unconfirmed account, and wrong password all map to it so the
	// response never reveals which one occurred.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSessionToken indicates a malformed token or failed signature check.
	ErrInvalidSessionToken = errors.New("invalid session token")
	// ErrExpiredSessionToken indicates a well-signed token outside its validity window.
	ErrExpiredSessionToken = errors.New("session token expired")
	// ErrPermissionDenied indicates the caller lacks a required role.
	ErrPermissionDenied = errors.New("insufficient permissions")
)

// AuthService authenticates credentials and issues session tokens.
type AuthService struct {
	cfg        *config.AppConfig
	accounts   port.AccountRepository
	roles      port.RoleRepository
	rateLimits port.RateLimitStore
	issuer     *security.SessionTokenIssuer
	hasher     *security.PasswordHasher
	logger     *zap.Logger

	now func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	roles port.RoleRepository,
	rateLimits port.RateLimitStore,
	issuer *security.SessionTokenIssuer,
	hasher *security.PasswordHasher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		cfg:        cfg,
		accounts:   accounts,
		roles:      roles,
		rateLimits: rateLimits,
		issuer:     issuer,
		hasher:     hasher,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token   string
	Account domain.Account
	Roles   []string
}

// Login verifies credentials and issues a session token with role claims.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	now := s.now().UTC()
	limit := 0
	window := time.Duration(0)
	if s.cfg != nil {
		limit = s.cfg.RateLimit.LoginMaxAttempts
		window = s.cfg.RateLimit.WindowDuration
	}
	if err := enforceRateLimit(ctx, s.rateLimits, s.logger, loginRateLimitScope, email, limit, window, now); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login for unknown account",
				zap.String("email", logger.MaskEmail(email)),
				zap.String("ip", logger.MaskIP(ip)),
			)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login with wrong password",
			zap.String("account_id", account.ID),
			zap.String("ip", logger.MaskIP(ip)),
		)
		return nil, ErrInvalidCredentials
	}

	if !account.IsConfirmed() {
		s.logger.Info("login before confirmation", zap.String("account_id", account.ID))
		return nil, ErrInvalidCredentials
	}

	roles, err := s.collectRoles(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.issuer.Issue(account.ID, roles, now)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	return &LoginResult{
		Token:   token,
		Account: sanitizeAccount(*account),
		Roles:   roles,
	}, nil
}

// ParseSessionToken verifies a bearer token and maps issuer failures onto the
// usecase error taxonomy.
func (s *AuthService) ParseSessionToken(token string) (*security.SessionTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSessionToken
	}

	claims, err := s.issuer.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, ErrInvalidSessionToken
	}

	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrInvalidSessionToken
	}

	return claims, nil
}

// SessionTTL reports the configured lifetime of issued session tokens.
func (s *AuthService) SessionTTL() time.Duration {
	return s.issuer.TTL()
}

// Authorize checks that verified claims carry the required role.
func (s *AuthService) Authorize(claims *security.SessionTokenClaims, requiredRole string) error {
	if claims == nil {
		return ErrInvalidSessionToken
	}
	if !domain.HasRole(claims.Roles, requiredRole) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *AuthService) collectRoles(ctx context.Context, accountID string) ([]string, error) {
	if s.roles == nil {
		return nil, nil
	}

	assigned, err := s.roles.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account roles: %w", err)
	}
	if len(assigned) == 0 {
		return nil, nil
	}

	result := make([]string, 0, len(assigned))
	for _, role := range assigned {
		if role.Name != "" {
			result = append(result, role.Name)
		}
	}
	return result, nil
}
