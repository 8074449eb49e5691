package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dabananda/secure-account-api/internal/transport/http/middleware"
	"github.com/dabananda/secure-account-api/internal/usecase"
)

// AdminHandler exposes role management endpoints for administrators.
type AdminHandler struct {
	roles *usecase.RoleService
}

func NewAdminHandler(roles *usecase.RoleService) *AdminHandler {
	return &AdminHandler{roles: roles}
}

// AssignRole grants a role to the target account. Assigning a role the
// account already holds succeeds without change.
func (h *AdminHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	err := h.roles.AssignRole(c.Request.Context(), usecase.AssignRoleInput{
		CallerID:    c.GetString(middleware.AccountIDKey),
		CallerRoles: callerRoles(c),
		TargetEmail: req.Email,
		RoleName:    req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrUnknownRole, Status: http.StatusBadRequest, Message: "unknown role"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to assign role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role assigned"})
}

// ListAccounts returns every account with its roles.
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	summaries, err := h.roles.ListAccounts(c.Request.Context(), callerRoles(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
		}, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	accounts := make([]AccountPayload, 0, len(summaries))
	for _, s := range summaries {
		accounts = append(accounts, newAccountSummaryPayload(s))
	}

	c.JSON(http.StatusOK, AccountListResponse{Accounts: accounts, Total: len(accounts)})
}

func callerRoles(c *gin.Context) []string {
	held, exists := c.Get("roles")
	if !exists {
		return nil
	}
	roles, _ := held.([]string)
	return roles
}
