package port

import (
	"context"
	"time"

	"github.com/dabananda/secure-account-api/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
// Email uniqueness is enforced by the backing store; lookups are case-insensitive.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, confirmedAt time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error
	List(ctx context.Context) ([]domain.Account, error)
}
