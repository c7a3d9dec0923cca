package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/registrar"
)

// RegistrarHandler exposes admin claim and verifier-root management.
type RegistrarHandler struct {
	reg    registrar.Registrar
	logger *zap.Logger
}

// NewRegistrarHandler creates a RegistrarHandler.
func NewRegistrarHandler(reg registrar.Registrar, logger *zap.Logger) *RegistrarHandler {
	return &RegistrarHandler{reg: reg, logger: logger}
}

// Register mounts the registrar routes on the given router group.
// authed must carry the RequireActor middleware; public must not.
func (h *RegistrarHandler) Register(public, authed *gin.RouterGroup) {
	public.GET("/root", h.CurrentRoot)
	public.GET("/admin", h.CurrentAdmin)
	authed.POST("/admin/claim", h.ClaimAdmin)
	authed.PUT("/admin/root", h.SetRoot)
}

// ClaimAdmin handles POST /admin/claim — the bearer becomes admin if the
// slot is still open.
func (h *RegistrarHandler) ClaimAdmin(c *gin.Context) {
	caller := Caller(c)
	if err := h.reg.ClaimAdmin(c.Request.Context(), caller); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": caller.String()})
}

type setRootRequest struct {
	Root string `json:"root" binding:"required"`
}

// SetRoot handles PUT /admin/root — overwrites the verifier root.
func (h *RegistrarHandler) SetRoot(c *gin.Context) {
	var req setRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "root is required"})
		return
	}

	root, err := commitment.ParseRoot(req.Root)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.reg.SetRoot(c.Request.Context(), Caller(c), root); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"root": root.String()})
}

// CurrentRoot handles GET /root.
func (h *RegistrarHandler) CurrentRoot(c *gin.Context) {
	root, err := h.reg.Root(c.Request.Context())
	if err != nil {
		h.logger.Error("read root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read root"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"root": root.String(), "set": !root.IsZero()})
}

// CurrentAdmin handles GET /admin.
func (h *RegistrarHandler) CurrentAdmin(c *gin.Context) {
	admin, err := h.reg.Admin(c.Request.Context())
	if err != nil {
		h.logger.Error("read admin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read admin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin.String(), "claimed": !admin.IsZero()})
}
