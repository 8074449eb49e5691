package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dabananda/secure-account-api/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler serves the public keys used to verify session tokens.
type JWKSHandler struct {
	issuer *security.SessionTokenIssuer
}

func NewJWKSHandler(issuer *security.SessionTokenIssuer) *JWKSHandler {
	return &JWKSHandler{issuer: issuer}
}

// Keys renders the JSON Web Key Set.
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.issuer == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "jwks not available"))
		return
	}

	payload, err := h.issuer.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
