package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/issuance"
	"github.com/gatemint/gatemint/internal/ledger"
)

// TokenHandler exposes issuance and the ledger over HTTP.
type TokenHandler struct {
	issuer *issuance.Service
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(issuer *issuance.Service, led ledger.Ledger, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, ledger: led, logger: logger}
}

// Register mounts the token routes. Queries are public; mutations require
// an authenticated actor.
func (h *TokenHandler) Register(public, authed *gin.RouterGroup) {
	public.GET("/tokens/:id", h.GetToken)
	public.GET("/actors/:address/balance", h.Balance)
	public.GET("/operators/:owner/:operator", h.OperatorStatus)
	public.GET("/supply", h.Supply)

	authed.POST("/tokens", h.Issue)
	authed.POST("/tokens/:id/approve", h.Approve)
	authed.POST("/tokens/:id/transfer", h.Transfer)
	authed.DELETE("/tokens/:id", h.Burn)
	authed.POST("/operators", h.SetOperator)
}

type issueRequest struct {
	Credential string `json:"credential"` // base64-encoded credential bytes
}

// Issue handles POST /tokens — verifies the caller's credential against the
// current root and mints on success.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	credential, err := base64.StdEncoding.DecodeString(req.Credential)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credential must be base64"})
		return
	}

	id, err := h.issuer.Issue(c.Request.Context(), Caller(c), credential)
	if err != nil {
		respondError(c, err)
		return
	}
	RecordMint()

	c.JSON(http.StatusCreated, gin.H{
		"token_id": id,
		"owner":    Caller(c).String(),
	})
}

// GetToken handles GET /tokens/:id — owner and current approval.
func (h *TokenHandler) GetToken(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	owner, err := h.ledger.OwnerOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	approved, err := h.ledger.GetApproved(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token_id": id,
		"owner":    owner.String(),
		"approved": approved.String(),
	})
}

// Balance handles GET /actors/:address/balance.
func (h *TokenHandler) Balance(c *gin.Context) {
	addr, err := commitment.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	bal, err := h.ledger.BalanceOf(c.Request.Context(), addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.String(), "balance": bal})
}

type approveRequest struct {
	To string `json:"to" binding:"required"`
}

// Approve handles POST /tokens/:id/approve.
func (h *TokenHandler) Approve(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is required"})
		return
	}
	to, err := commitment.ParseAddress(req.To)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.ledger.Approve(c.Request.Context(), Caller(c), to, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": id, "approved": to.String()})
}

type transferRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// Transfer handles POST /tokens/:id/transfer.
func (h *TokenHandler) Transfer(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	from, err := commitment.ParseAddress(req.From)
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := commitment.ParseAddress(req.To)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.ledger.TransferFrom(c.Request.Context(), Caller(c), from, to, id); err != nil {
		respondError(c, err)
		return
	}
	RecordTransfer()
	c.JSON(http.StatusOK, gin.H{"token_id": id, "owner": to.String()})
}

// Burn handles DELETE /tokens/:id.
func (h *TokenHandler) Burn(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	if err := h.ledger.Burn(c.Request.Context(), Caller(c), id); err != nil {
		respondError(c, err)
		return
	}
	RecordBurn()
	c.JSON(http.StatusOK, gin.H{"token_id": id, "burned": true})
}

type operatorRequest struct {
	Operator string `json:"operator" binding:"required"`
	Approved *bool  `json:"approved" binding:"required"`
}

// SetOperator handles POST /operators — grants or revokes blanket operator
// rights over all of the caller's tokens.
func (h *TokenHandler) SetOperator(c *gin.Context) {
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator and approved are required"})
		return
	}
	operator, err := commitment.ParseAddress(req.Operator)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.ledger.SetApprovalForAll(c.Request.Context(), Caller(c), operator, *req.Approved); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":    Caller(c).String(),
		"operator": operator.String(),
		"approved": *req.Approved,
	})
}

// OperatorStatus handles GET /operators/:owner/:operator.
func (h *TokenHandler) OperatorStatus(c *gin.Context) {
	owner, err := commitment.ParseAddress(c.Param("owner"))
	if err != nil {
		respondError(c, err)
		return
	}
	operator, err := commitment.ParseAddress(c.Param("operator"))
	if err != nil {
		respondError(c, err)
		return
	}

	approved, err := h.ledger.IsApprovedForAll(c.Request.Context(), owner, operator)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":    owner.String(),
		"operator": operator.String(),
		"approved": approved,
	})
}

// Supply handles GET /supply.
func (h *TokenHandler) Supply(c *gin.Context) {
	supply, err := h.ledger.TotalSupply(c.Request.Context())
	if err != nil {
		h.logger.Error("total supply", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read supply"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_supply": supply})
}

// tokenID parses the :id path parameter; on failure it writes a 400 and
// returns ok=false.
func tokenID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
