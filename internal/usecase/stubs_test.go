package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/repository"
)

const strongTestPassword = "Sup3r!SecurePass#7890"

type stubAccountRepository struct {
	createErr      error
	createCalls    int
	createdAccount domain.Account

	accountsByEmail map[string]*domain.Account
	getByEmailErr   error
	getByEmailCalls int

	updateStatusErr    error
	updateStatusCalls  int
	updateStatusID     string
	updateStatusStatus domain.AccountStatus

	updatePasswordErr   error
	updatePasswordCalls int
	updatePasswordID    string
	updatePasswordHash  string

	listResult []domain.Account
	listErr    error
}

func (m *stubAccountRepository) Create(_ context.Context, account domain.Account) error {
	m.createCalls++
	m.createdAccount = account
	return m.createErr
}

func (m *stubAccountRepository) GetByID(context.Context, string) (*domain.Account, error) {
	return nil, errors.New("unexpected call: GetByID")
}

func (m *stubAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.getByEmailCalls++
	if m.getByEmailErr != nil {
		return nil, m.getByEmailErr
	}
	account, ok := m.accountsByEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *stubAccountRepository) UpdateStatus(_ context.Context, id string, status domain.AccountStatus, _ time.Time) error {
	m.updateStatusCalls++
	m.updateStatusID = id
	m.updateStatusStatus = status
	return m.updateStatusErr
}

func (m *stubAccountRepository) UpdatePassword(_ context.Context, id, passwordHash, _ string, _ time.Time) error {
	m.updatePasswordCalls++
	m.updatePasswordID = id
	m.updatePasswordHash = passwordHash
	return m.updatePasswordErr
}

func (m *stubAccountRepository) List(context.Context) ([]domain.Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Account, len(m.listResult))
	copy(out, m.listResult)
	return out, nil
}

// stubTokenRepository redeems against an in-memory token table under a mutex
// so concurrent redemption behaves like the conditional update in PostgreSQL.
type stubTokenRepository struct {
	mu sync.Mutex

	createErr    error
	createCalls  int
	createdToken domain.PurposeToken

	tokensByHash map[string]*domain.PurposeToken
	redeemErr    error
	redeemCalls  int

	deleteExpiredResult int
	deleteExpiredErr    error
	deleteExpiredCalls  int
}

func (m *stubTokenRepository) Create(_ context.Context, token domain.PurposeToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	m.createdToken = token
	if m.createErr != nil {
		return m.createErr
	}
	if m.tokensByHash == nil {
		m.tokensByHash = make(map[string]*domain.PurposeToken)
	}
	copied := token
	m.tokensByHash[token.TokenHash] = &copied
	return nil
}

func (m *stubTokenRepository) Redeem(_ context.Context, tokenHash, accountID string, purpose domain.TokenPurpose, now time.Time) (*domain.PurposeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.redeemCalls++
	if m.redeemErr != nil {
		return nil, m.redeemErr
	}

	token, ok := m.tokensByHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if token.AccountID != accountID || token.Purpose != purpose {
		return nil, repository.ErrTokenPurposeMismatch
	}
	if token.UsedAt != nil {
		return nil, repository.ErrTokenConsumed
	}
	if token.IsExpired(now) {
		return nil, repository.ErrTokenExpired
	}

	token.Consume(now)
	copied := *token
	return &copied, nil
}

func (m *stubTokenRepository) DeleteExpired(context.Context, time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteExpiredCalls++
	return m.deleteExpiredResult, m.deleteExpiredErr
}

type stubRoleRepository struct {
	rolesByName map[string]*domain.Role

	ensureCalls int
	ensureErr   error

	assignCalls     int
	assignErr       error
	assignAccountID string
	assignRoleID    string

	rolesByAccount map[string][]domain.Role
	listByAccErr   error
}

func (m *stubRoleRepository) Ensure(_ context.Context, role domain.Role) error {
	m.ensureCalls++
	return m.ensureErr
}

func (m *stubRoleRepository) List(context.Context) ([]domain.Role, error) {
	return nil, errors.New("unexpected call: List")
}

func (m *stubRoleRepository) GetByName(_ context.Context, name string) (*domain.Role, error) {
	role, ok := m.rolesByName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (m *stubRoleRepository) AssignToAccount(_ context.Context, accountID, roleID string, _ time.Time) error {
	m.assignCalls++
	m.assignAccountID = accountID
	m.assignRoleID = roleID
	return m.assignErr
}

func (m *stubRoleRepository) ListByAccount(_ context.Context, accountID string) ([]domain.Role, error) {
	if m.listByAccErr != nil {
		return nil, m.listByAccErr
	}
	roles := m.rolesByAccount[accountID]
	out := make([]domain.Role, len(roles))
	copy(out, roles)
	return out, nil
}

type stubNotifier struct {
	confirmationCalls int
	confirmationMsg   port.ConfirmationMessage
	confirmationErr   error

	resetCalls int
	resetMsg   port.PasswordResetMessage
	resetErr   error
}

func (m *stubNotifier) SendAccountConfirmation(_ context.Context, msg port.ConfirmationMessage) error {
	m.confirmationCalls++
	m.confirmationMsg = msg
	return m.confirmationErr
}

func (m *stubNotifier) SendPasswordReset(_ context.Context, msg port.PasswordResetMessage) error {
	m.resetCalls++
	m.resetMsg = msg
	return m.resetErr
}

type stubEventPublisher struct {
	registeredCalls int
	registeredEvent domain.AccountRegisteredEvent

	confirmedCalls int
	confirmedEvent domain.AccountConfirmedEvent

	passwordChangedCalls int
	passwordChangedEvent domain.PasswordChangedEvent

	resetRequestedCalls int
	resetRequestedEvent domain.PasswordResetRequestedEvent

	roleAssignedCalls int
	roleAssignedEvent domain.RoleAssignedEvent

	err error
}

func (m *stubEventPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	m.registeredCalls++
	m.registeredEvent = event
	return m.err
}

func (m *stubEventPublisher) PublishAccountConfirmed(_ context.Context, event domain.AccountConfirmedEvent) error {
	m.confirmedCalls++
	m.confirmedEvent = event
	return m.err
}

func (m *stubEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.passwordChangedCalls++
	m.passwordChangedEvent = event
	return m.err
}

func (m *stubEventPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	m.resetRequestedCalls++
	m.resetRequestedEvent = event
	return m.err
}

func (m *stubEventPublisher) PublishRoleAssigned(_ context.Context, event domain.RoleAssignedEvent) error {
	m.roleAssignedCalls++
	m.roleAssignedEvent = event
	return m.err
}

// stubRateLimitStore keeps attempts in memory per identifier.
type stubRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time

	recordErr error
	countErr  error
	trimErr   error
	oldestErr error
}

func (m *stubRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == nil {
		m.attempts = make(map[string][]time.Time)
	}
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *stubRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, at := range m.attempts[identifier] {
		if at.After(reference.Add(-window)) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (m *stubRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if m.trimErr != nil {
		return m.trimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if at.After(reference.Add(-window)) {
			kept = append(kept, at)
		}
	}
	if m.attempts != nil {
		m.attempts[identifier] = kept
	}
	return nil
}

func (m *stubRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if m.oldestErr != nil {
		return time.Time{}, false, m.oldestErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if at.After(reference.Add(-window)) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

var (
	_ port.AccountRepository = (*stubAccountRepository)(nil)
	_ port.TokenRepository   = (*stubTokenRepository)(nil)
	_ port.RoleRepository    = (*stubRoleRepository)(nil)
	_ port.Notifier          = (*stubNotifier)(nil)
	_ port.EventPublisher    = (*stubEventPublisher)(nil)
	_ port.RateLimitStore    = (*stubRateLimitStore)(nil)
)
