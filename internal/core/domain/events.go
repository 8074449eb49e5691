package domain

import "time"

// AccountRegisteredEvent represents the payload for identity.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Status       string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// AccountConfirmedEvent represents the payload for identity.account.confirmed messages.
type AccountConfirmedEvent struct {
	EventID     string
	AccountID   string
	ConfirmedAt time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent represents the payload for identity.account.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	ChangedBy string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent represents the payload for identity.account.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	RequestID         string
	RequestedAt       time.Time
	MaskedDestination string
	IPAddress         *string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// RoleAssignedEvent represents the payload for identity.account.role.assigned messages.
type RoleAssignedEvent struct {
	EventID    string
	AccountID  string
	RoleName   string
	AssignedBy string
	AssignedAt time.Time
	Metadata   map[string]any
}
