package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// pgExecutor abstracts over pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ pgExecutor = (*pgxpool.Pool)(nil)
)

// Repositories bundles the PostgreSQL-backed repositories sharing one pool.
type Repositories struct {
	Accounts *AccountRepository
	Tokens   *TokenRepository
	Roles    *RoleRepository
}

// NewRepositories wires all repositories against the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(pool),
		Tokens:   NewTokenRepository(pool),
		Roles:    NewRoleRepository(pool),
	}
}
