// Package handler exposes the gate service over HTTP: admin claim and root
// management, credential-gated issuance, ledger mutations and queries, the
// event stream, and webhook subscriptions.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/identity"
)

// callerKey is the gin context key holding the authenticated actor address.
const callerKey = "gatemint.caller"

// RequireActor returns a middleware that authenticates the bearer token and
// stores the bound actor address in the request context.
func RequireActor(tokens *identity.ActorTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		addr, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid actor token"})
			return
		}

		c.Set(callerKey, addr)
		c.Next()
	}
}

// Caller returns the authenticated actor address set by RequireActor.
func Caller(c *gin.Context) commitment.Address {
	if v, ok := c.Get(callerKey); ok {
		if addr, ok := v.(commitment.Address); ok {
			return addr
		}
	}
	return commitment.ZeroAddress
}

// AuthHandler issues actor tokens. It backs the development token endpoint;
// production deployments are expected to front the service with a real
// identity provider and disable this handler.
type AuthHandler struct {
	tokens *identity.ActorTokenIssuer
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(tokens *identity.ActorTokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.IssueToken)
}

type tokenRequest struct {
	Address string `json:"address" binding:"required"`
}

// IssueToken handles POST /auth/token — mints an actor token for an address.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	addr, err := commitment.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return
	}
	if addr.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot issue a token for the zero address"})
		return
	}

	tok, err := h.tokens.Issue(addr)
	if err != nil {
		h.logger.Error("issue actor token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tok, "address": addr.String()})
}
