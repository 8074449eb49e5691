package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/repository"
)

func newRoleRepositoryMock(t *testing.T) (*RoleRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := &RoleRepository{
		exec:    mock,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	return repo, mock
}

func TestRoleRepository_Ensure_IsIdempotent(t *testing.T) {
	repo, mock := newRoleRepositoryMock(t)

	role := domain.Role{ID: "role-1", Name: domain.RoleUser}

	// Seeding an existing role matches zero rows through the conflict clause.
	mock.ExpectExec(`INSERT INTO identity\.roles .* ON CONFLICT \(name\) DO NOTHING`).
		WithArgs("role-1", domain.RoleUser, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.Ensure(context.Background(), role); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetByName(t *testing.T) {
	repo, mock := newRoleRepositoryMock(t)

	mock.ExpectQuery(`SELECT .* FROM identity\.roles`).
		WithArgs(domain.RoleAdmin).
		WillReturnRows(pgxmock.NewRows(roleColumns).AddRow("role-1", domain.RoleAdmin, "full access"))

	role, err := repo.GetByName(context.Background(), domain.RoleAdmin)
	if err != nil {
		t.Fatalf("GetByName returned error: %v", err)
	}
	if role.Name != domain.RoleAdmin {
		t.Fatalf("expected role %q, got %q", domain.RoleAdmin, role.Name)
	}
	if role.Description == nil || *role.Description != "full access" {
		t.Fatalf("expected description to scan, got %v", role.Description)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetByName_NotFound(t *testing.T) {
	repo, mock := newRoleRepositoryMock(t)

	mock.ExpectQuery(`SELECT .* FROM identity\.roles`).
		WithArgs("Superuser").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByName(context.Background(), "Superuser")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_AssignToAccount(t *testing.T) {
	repo, mock := newRoleRepositoryMock(t)
	at := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO identity\.account_roles .* ON CONFLICT \(account_id, role_id\) DO NOTHING`).
		WithArgs("acc-1", "role-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.AssignToAccount(context.Background(), "acc-1", "role-1", at); err != nil {
		t.Fatalf("AssignToAccount returned error: %v", err)
	}

	// A repeated assignment hits the conflict clause and stays silent.
	mock.ExpectExec(`INSERT INTO identity\.account_roles`).
		WithArgs("acc-1", "role-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.AssignToAccount(context.Background(), "acc-1", "role-1", at); err != nil {
		t.Fatalf("repeated AssignToAccount returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_ListByAccount(t *testing.T) {
	repo, mock := newRoleRepositoryMock(t)

	rows := pgxmock.NewRows([]string{"id", "name", "description"}).
		AddRow("role-1", domain.RoleModerator, nil).
		AddRow("role-2", domain.RoleUser, "default role")

	mock.ExpectQuery(`SELECT .* FROM identity\.roles r JOIN identity\.account_roles ar`).
		WithArgs("acc-1").
		WillReturnRows(rows)

	roles, err := repo.ListByAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("ListByAccount returned error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0].Description != nil {
		t.Fatal("expected nil description for first role")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
