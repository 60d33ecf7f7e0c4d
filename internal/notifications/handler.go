package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/notifications/websocket"
)

type Handler struct {
	service   *Service
	wsManager *websocket.Manager
	logger    *zap.Logger
}

// NewHandler wires the inbox endpoints. wsManager may be nil, in which case
// /ws is not registered.
func NewHandler(service *Service, wsManager *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, wsManager: wsManager, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	{
		notifications.GET("", h.list)
		notifications.GET("/unread-count", h.unreadCount)
		notifications.PUT("/read-all", h.markAllRead)
		notifications.PUT("/:id/read", h.markRead)
	}
	if h.wsManager != nil {
		router.GET("/ws", h.connect)
	}
}

// list handles GET /notifications?unread=true&limit=&offset=
func (h *Handler) list(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	items, err := h.service.GetUserNotifications(c.Request.Context(), actor.ID, ListFilter{
		UnreadOnly: unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "limit": limit, "offset": offset})
}

func (h *Handler) unreadCount(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), actor.ID)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *Handler) markRead(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	if err := h.service.MarkNotificationAsRead(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markAllRead(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	updated, err := h.service.MarkAllAsRead(c.Request.Context(), actor.ID)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MarkAllReadResponse{Updated: updated})
}

// connect upgrades GET /ws for the authenticated user.
func (h *Handler) connect(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	if _, err := h.wsManager.HandleConnection(c.Writer, c.Request, actor.ID); err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", actor.ID), zap.Error(err))
	}
}
