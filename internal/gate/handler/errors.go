package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/issuance"
	"github.com/gatemint/gatemint/internal/ledger"
	"github.com/gatemint/gatemint/internal/registrar"
)

// respondError maps domain errors to HTTP status codes. Unknown errors are
// reported as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, registrar.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, issuance.ErrVerificationFailed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrOwnerMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, registrar.ErrAlreadyInitialized), errors.Is(err, registrar.ErrNotInitialized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidActor),
		errors.Is(err, issuance.ErrInvalidActor),
		errors.Is(err, issuance.ErrMissingCredential),
		errors.Is(err, commitment.ErrMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
