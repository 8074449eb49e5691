package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/repository"
)

func newAccountRepositoryMock(t *testing.T) (*AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := &AccountRepository{
		exec:    mock,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	return repo, mock
}

func accountRow(account domain.Account) *pgxmock.Rows {
	var confirmedAt any
	if account.ConfirmedAt != nil {
		confirmedAt = *account.ConfirmedAt
	}
	return pgxmock.NewRows(accountColumns).AddRow(
		account.ID,
		account.Email,
		account.PasswordHash,
		account.PasswordAlgo,
		account.Status,
		account.RegisteredAt,
		confirmedAt,
		account.LastPasswordChange,
	)
}

func TestAccountRepository_Create_NormalizesEmail(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)
	now := time.Now().UTC()

	account := domain.Account{
		ID:                 "acc-1",
		Email:              "  Jane.Doe@Example.COM ",
		PasswordHash:       "digest",
		PasswordAlgo:       "argon2id",
		Status:             domain.AccountStatusPending,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}

	mock.ExpectExec(`INSERT INTO identity\.accounts`).
		WithArgs("acc-1", "jane.doe@example.com", "digest", "argon2id",
			domain.AccountStatusPending, now, (*time.Time)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)

	mock.ExpectExec(`INSERT INTO identity\.accounts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err := repo.Create(context.Background(), domain.Account{ID: "acc-1", Email: "jane@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)
	now := time.Now().UTC()
	confirmedAt := now.Add(-time.Hour)

	stored := domain.Account{
		ID:                 "acc-1",
		Email:              "jane@example.com",
		PasswordHash:       "digest",
		PasswordAlgo:       "argon2id",
		Status:             domain.AccountStatusActive,
		RegisteredAt:       now.Add(-48 * time.Hour),
		ConfirmedAt:        &confirmedAt,
		LastPasswordChange: now.Add(-24 * time.Hour),
	}

	mock.ExpectQuery(`SELECT .* FROM identity\.accounts`).
		WithArgs("jane@example.com").
		WillReturnRows(accountRow(stored))

	account, err := repo.GetByEmail(context.Background(), "JANE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if account.ID != "acc-1" {
		t.Fatalf("expected acc-1, got %q", account.ID)
	}
	if account.ConfirmedAt == nil || !account.ConfirmedAt.Equal(confirmedAt) {
		t.Fatalf("expected confirmed_at %v, got %v", confirmedAt, account.ConfirmedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)

	mock.ExpectQuery(`SELECT .* FROM identity\.accounts`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateStatus(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)
	confirmedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE identity\.accounts SET`).
		WithArgs(domain.AccountStatusActive, confirmedAt, "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(context.Background(), "acc-1", domain.AccountStatusActive, confirmedAt)
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateStatus_MissingAccount(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)

	mock.ExpectExec(`UPDATE identity\.accounts SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "acc-missing", domain.AccountStatusActive, time.Now())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)
	changedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE identity\.accounts SET`).
		WithArgs("new-digest", "argon2id", changedAt, "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePassword(context.Background(), "acc-1", "new-digest", "argon2id", changedAt)
	if err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_List(t *testing.T) {
	repo, mock := newAccountRepositoryMock(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(accountColumns).
		AddRow("acc-1", "a@example.com", "d1", "argon2id",
			domain.AccountStatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour), now).
		AddRow("acc-2", "b@example.com", "d2", "argon2id",
			domain.AccountStatusPending, now.Add(-time.Hour), nil, now)

	mock.ExpectQuery(`SELECT .* FROM identity\.accounts ORDER BY registered_at ASC`).
		WillReturnRows(rows)

	accounts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].ConfirmedAt == nil {
		t.Fatal("expected first account to be confirmed")
	}
	if accounts[1].ConfirmedAt != nil {
		t.Fatal("expected second account to be unconfirmed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
