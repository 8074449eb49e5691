package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dabananda/secure-account-api/internal/usecase"
)

const resetAcceptedMessage = "if the account exists, a password reset email has been sent"

// PasswordHandler exposes the password reset endpoints.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// ForgotPassword issues a reset token for the account. The response is
// identical whether or not the account exists; only rate limiting is
// surfaced.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset request payload"))
		return
	}

	_, err := h.reset.RequestReset(c.Request.Context(), usecase.RequestResetInput{
		Email: req.Email,
		IP:    c.ClientIP(),
	})
	switch {
	case err == nil, errors.Is(err, usecase.ErrAccountNotFound), errors.Is(err, usecase.ErrNotificationFailed):
		c.JSON(http.StatusAccepted, MessageResponse{Message: resetAcceptedMessage})
	default:
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to process reset request")
	}
}

// ResetPassword redeems a reset token and installs a new password.
// Account existence stays masked behind the generic accepted response;
// token problems for known accounts are reported so legitimate users
// can request a fresh link.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	err := h.reset.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:       req.Email,
		Token:       req.Token,
		NewPassword: req.NewPassword,
		IP:          c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) {
			c.JSON(http.StatusAccepted, MessageResponse{Message: resetAcceptedMessage})
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenExpired, Status: http.StatusBadRequest, Message: "reset token has expired"},
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "reset token is invalid"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
