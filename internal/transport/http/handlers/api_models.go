package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountPayload describes a minimal view of an account returned by the API.
type AccountPayload struct {
	ID           string               `json:"id"`
	Email        string               `json:"email"`
	Status       domain.AccountStatus `json:"status"`
	RegisteredAt time.Time            `json:"registered_at"`
	Roles        []string             `json:"roles,omitempty"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterResponse contains registration results and next steps.
type RegisterResponse struct {
	Account  AccountPayload `json:"account"`
	Message  string         `json:"message"`
	Notified bool           `json:"notified"`
}

// ConfirmEmailRequest holds the email confirmation payload.
type ConfirmEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes a successful login.
type LoginResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresIn int            `json:"expires_in"`
	Account   AccountPayload `json:"account"`
}

// ForgotPasswordRequest initiates a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest redeems a reset token with a replacement password.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// AssignRoleRequest grants a role to the target account.
type AssignRoleRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AccountListResponse wraps the admin account listing.
type AccountListResponse struct {
	Accounts []AccountPayload `json:"accounts"`
	Total    int              `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newAccountPayload(account domain.Account, roles []string) AccountPayload {
	payload := AccountPayload{
		ID:           account.ID,
		Email:        account.Email,
		Status:       account.Status,
		RegisteredAt: account.RegisteredAt,
	}

	if len(roles) > 0 {
		rolesCopy := make([]string, len(roles))
		copy(rolesCopy, roles)
		payload.Roles = rolesCopy
	}

	return payload
}

func newAccountSummaryPayload(summary usecase.AccountSummary) AccountPayload {
	return AccountPayload{
		ID:           summary.ID,
		Email:        summary.Email,
		Status:       summary.Status,
		RegisteredAt: summary.RegisteredAt,
		Roles:        summary.Roles,
	}
}
