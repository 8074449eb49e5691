package port

import (
	"context"
	"time"

	"github.com/dabananda/secure-account-api/internal/core/domain"
)

// RoleRepository handles role lookups and membership.
type RoleRepository interface {
	Ensure(ctx context.Context, role domain.Role) error
	List(ctx context.Context) ([]domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	// AssignToAccount adds a role to an account. Assigning an already-held role
	// is a no-op success.
	AssignToAccount(ctx context.Context, accountID, roleID string, at time.Time) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.Role, error)
}
