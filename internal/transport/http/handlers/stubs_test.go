package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/repository"
)

// stubAccountRepository serves accounts from an in-memory map keyed by
// normalized email.
type stubAccountRepository struct {
	accounts map[string]domain.Account
}

func newStubAccountRepository(accounts ...domain.Account) *stubAccountRepository {
	repo := &stubAccountRepository{accounts: make(map[string]domain.Account)}
	for _, account := range accounts {
		repo.accounts[domain.NormalizeEmail(account.Email)] = account
	}
	return repo
}

func (s *stubAccountRepository) Create(_ context.Context, account domain.Account) error {
	s.accounts[domain.NormalizeEmail(account.Email)] = account
	return nil
}

func (s *stubAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	for _, account := range s.accounts {
		if account.ID == id {
			copied := account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	account, ok := s.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := account
	return &copied, nil
}

func (s *stubAccountRepository) UpdateStatus(_ context.Context, id string, status domain.AccountStatus, confirmedAt time.Time) error {
	for email, account := range s.accounts {
		if account.ID == id {
			account.Status = status
			account.ConfirmedAt = &confirmedAt
			s.accounts[email] = account
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubAccountRepository) UpdatePassword(_ context.Context, id, passwordHash, passwordAlgo string, changedAt time.Time) error {
	for email, account := range s.accounts {
		if account.ID == id {
			account.PasswordHash = passwordHash
			account.PasswordAlgo = passwordAlgo
			account.LastPasswordChange = changedAt
			s.accounts[email] = account
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubAccountRepository) List(_ context.Context) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	return out, nil
}

// stubTokenRepository accepts created tokens and treats every redemption
// attempt as unknown.
type stubTokenRepository struct {
	created []domain.PurposeToken
}

func (s *stubTokenRepository) Create(_ context.Context, token domain.PurposeToken) error {
	s.created = append(s.created, token)
	return nil
}

func (s *stubTokenRepository) Redeem(context.Context, string, string, domain.TokenPurpose, time.Time) (*domain.PurposeToken, error) {
	return nil, repository.ErrNotFound
}

func (s *stubTokenRepository) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// stubNotifier records deliveries and can be told to fail.
type stubNotifier struct {
	confirmations []port.ConfirmationMessage
	resets        []port.PasswordResetMessage
	failWith      error
}

func (s *stubNotifier) SendAccountConfirmation(_ context.Context, msg port.ConfirmationMessage) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.confirmations = append(s.confirmations, msg)
	return nil
}

func (s *stubNotifier) SendPasswordReset(_ context.Context, msg port.PasswordResetMessage) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.resets = append(s.resets, msg)
	return nil
}

var errDeliveryDown = errors.New("smtp connection refused")
