package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dabananda/secure-account-api/internal/usecase"
)

// RegistrationHandler exposes endpoints for account creation and email
// confirmation.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// Register creates a pending account and sends a confirmation message.
// A notification delivery failure still returns 201; the account exists
// and the caller can retrieve a fresh confirmation link later.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil && !errors.Is(err, usecase.ErrNotificationFailed) {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateAccount, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	resp := RegisterResponse{
		Account:  newAccountPayload(result.Account, nil),
		Notified: result.Notified,
	}
	if result.Notified {
		resp.Message = "confirmation email sent"
	} else {
		resp.Message = "account created, confirmation email could not be sent"
	}

	c.JSON(http.StatusCreated, resp)
}

// ConfirmEmail activates a pending account. Accepts the email and token
// either as query parameters (the emailed link) or as a JSON body.
// Every failure collapses to the same response so callers cannot probe
// which part was wrong.
func (h *RegistrationHandler) ConfirmEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	token := strings.TrimSpace(c.Query("token"))

	if email == "" || token == "" {
		var req ConfirmEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and token are required"))
			return
		}
		email = req.Email
		token = req.Token
	}

	if err := h.registration.ConfirmEmail(c.Request.Context(), email, token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrConfirmationFailed, Status: http.StatusBadRequest, Message: "confirmation link is invalid or has expired"},
		}, http.StatusInternalServerError, "failed to confirm email")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email confirmed"})
}
