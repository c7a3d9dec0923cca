package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/events"
)

// EventsHandler exposes the event journal and webhook subscriptions.
type EventsHandler struct {
	journal   *events.Journal
	forwarder *events.Forwarder // nil = webhook routes disabled
	logger    *zap.Logger
}

// NewEventsHandler creates an EventsHandler. forwarder may be nil.
func NewEventsHandler(journal *events.Journal, forwarder *events.Forwarder, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{journal: journal, forwarder: forwarder, logger: logger}
}

// Register mounts the event routes.
func (h *EventsHandler) Register(public, authed *gin.RouterGroup) {
	public.GET("/events", h.List)
	public.GET("/events/:seq", h.Get)
	if h.forwarder != nil {
		authed.POST("/webhooks", h.SubscribeWebhook)
		authed.GET("/webhooks", h.ListWebhooks)
		authed.DELETE("/webhooks/:id", h.DeleteWebhook)
	}
}

// List handles GET /events?since=N — the journal tail after sequence N.
func (h *EventsHandler) List(c *gin.Context) {
	var since uint64
	if s := c.Query("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		since = v
	}

	tail := h.journal.Since(since)
	c.JSON(http.StatusOK, gin.H{
		"total":  h.journal.Len(),
		"events": tail,
	})
}

// Get handles GET /events/:seq — a single journal entry.
func (h *EventsHandler) Get(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil || seq == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a positive integer"})
		return
	}

	ev, err := h.journal.Get(seq)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

type subscribeRequest struct {
	URL   string        `json:"url" binding:"required,url"`
	Types []events.Type `json:"types,omitempty"`
}

// SubscribeWebhook handles POST /webhooks. The response carries the HMAC
// secret exactly once; it is never returned again.
func (h *EventsHandler) SubscribeWebhook(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required and must be valid"})
		return
	}

	sub, err := h.forwarder.Subscribe(req.URL, req.Types)
	if err != nil {
		h.logger.Error("create webhook subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// ListWebhooks handles GET /webhooks.
func (h *EventsHandler) ListWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscriptions": h.forwarder.List()})
}

// DeleteWebhook handles DELETE /webhooks/:id.
func (h *EventsHandler) DeleteWebhook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}
	if !h.forwarder.Unsubscribe(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
