package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	settings := r.Group("/settings")
	{
		settings.GET("/notifications", h.GetNotifications)
		settings.PUT("/notifications", h.UpdateNotifications)
	}
}

func (h *Handler) GetNotifications(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	prefs, err := h.service.GetNotifications(c.Request.Context(), actor.ID)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdateNotifications(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var payload UpdateNotificationsRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	prefs, err := h.service.UpdateNotifications(c.Request.Context(), actor.ID, payload)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
