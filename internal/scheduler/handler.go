package scheduler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
)

type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes registers the admin-only job routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/admin/jobs", auth.RequireRole())
	{
		jobs.GET("", h.list)
		jobs.POST("/:name/run", h.run)
	}
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.manager.Statuses()})
}

func (h *Handler) run(c *gin.Context) {
	status, err := h.manager.RunNow(c.Request.Context(), c.Param("name"))
	if errors.Is(err, ErrUnknownJob) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": apierr.CodeNotFound})
		return
	}
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
