package domain

import (
	"strings"
	"time"
)

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	// AccountStatusPending marks an account created but not yet email-confirmed.
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive marks an account whose email has been confirmed.
	AccountStatusActive AccountStatus = "active"
)

// Account mirrors the persisted representation in the accounts table.
// Email is the unique identity and is stored lowercased.
type Account struct {
	ID                 string
	Email              string
	PasswordHash       string
	PasswordAlgo       string
	Status             AccountStatus
	RegisteredAt       time.Time
	ConfirmedAt        *time.Time
	LastPasswordChange time.Time
}

// IsConfirmed reports whether the account completed email confirmation.
func (a Account) IsConfirmed() bool {
	return a.Status == AccountStatusActive
}

// Confirm transitions the account to the active state.
// Returns true when the status actually changed.
func (a *Account) Confirm(at time.Time) bool {
	if a.Status == AccountStatusActive {
		return false
	}
	a.Status = AccountStatusActive
	timeCopy := at
	a.ConfirmedAt = &timeCopy
	return true
}

// NormalizeEmail canonicalizes an email address for case-insensitive comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
