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
	"github.com/dabananda/secure-account-api/internal/repository"
)

// ErrUnknownRole indicates the role name is outside the seeded set.
var ErrUnknownRole = errors.New("unknown role")

// RoleService manages role membership and the admin account listing.
type RoleService struct {
	accounts port.AccountRepository
	roles    port.RoleRepository
	events   port.EventPublisher
	logger   *zap.Logger

	now func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(accounts port.AccountRepository, roles port.RoleRepository, events port.EventPublisher, log *zap.Logger) *RoleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleService{
		accounts: accounts,
		roles:    roles,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RoleService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SeedRoles provisions the builtin role set. Safe to run on every startup.
func (s *RoleService) SeedRoles(ctx context.Context) error {
	for _, name := range domain.SeededRoles() {
		role := domain.Role{
			ID:   uuid.NewString(),
			Name: name,
		}
		if err := s.roles.Ensure(ctx, role); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// AssignRoleInput carries an admin role assignment request. CallerRoles must
// come from verified session token claims.
type AssignRoleInput struct {
	CallerID    string
	CallerRoles []string
	TargetEmail string
	RoleName    string
}

// AssignRole adds a role to the target account. Only Admin callers may
// assign; assigning an already-held role is a no-op success.
func (s *RoleService) AssignRole(ctx context.Context, input AssignRoleInput) error {
	if !domain.HasRole(input.CallerRoles, domain.RoleAdmin) {
		return ErrPermissionDenied
	}

	roleName := strings.TrimSpace(input.RoleName)
	if !domain.KnownRole(roleName) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	email := domain.NormalizeEmail(input.TargetEmail)
	if email == "" {
		return fmt.Errorf("target email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup target account: %w", err)
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
		}
		return fmt.Errorf("lookup role: %w", err)
	}

	now := s.now().UTC()
	if err := s.roles.AssignToAccount(ctx, account.ID, role.ID, now); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	s.publishRoleAssignedEvent(ctx, account.ID, roleName, input.CallerID, now)

	return nil
}

// AccountSummary is the admin-facing account listing entry.
type AccountSummary struct {
	ID           string
	Email        string
	Status       domain.AccountStatus
	RegisteredAt time.Time
	Roles        []string
}

// ListAccounts returns every account with its role names. Admin only.
func (s *RoleService) ListAccounts(ctx context.Context, callerRoles []string) ([]AccountSummary, error) {
	if !domain.HasRole(callerRoles, domain.RoleAdmin) {
		return nil, ErrPermissionDenied
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		roles, err := s.roles.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("list roles for %s: %w", account.ID, err)
		}

		names := make([]string, 0, len(roles))
		for _, role := range roles {
			names = append(names, role.Name)
		}

		summaries = append(summaries, AccountSummary{
			ID:           account.ID,
			Email:        account.Email,
			Status:       account.Status,
			RegisteredAt: account.RegisteredAt,
			Roles:        names,
		})
	}

	return summaries, nil
}

func (s *RoleService) publishRoleAssignedEvent(ctx context.Context, accountID, roleName, assignedBy string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.RoleAssignedEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		RoleName:   roleName,
		AssignedBy: strings.TrimSpace(assignedBy),
		AssignedAt: at,
	}
	if err := s.events.PublishRoleAssigned(ctx, event); err != nil {
		s.logger.Warn("publish role assigned failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}
