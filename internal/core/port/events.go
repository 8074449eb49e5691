package port

import (
	"context"

	"github.com/dabananda/secure-account-api/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountConfirmed(ctx context.Context, event domain.AccountConfirmedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error
}
