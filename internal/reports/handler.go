package reports

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/reports/export"
	"simflow/portal-backend/internal/workflow"
)

// Handler handles HTTP requests for reporting operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reporting routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/dashboard", h.getDashboard)
		reports.GET("/projects/:id/ledger/export", auth.RequireRole(workflow.RoleManager), h.exportLedger)
	}
}

// getDashboard handles GET /api/v1/reports/dashboard
func (h *Handler) getDashboard(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	summary, err := h.service.Dashboard(c.Request.Context(), actor)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// exportLedger handles GET /api/v1/reports/projects/:id/ledger/export
func (h *Handler) exportLedger(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		apierr.BadRequest(c, err)
		return
	}

	result, err := h.service.ExportLedger(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	if result.Stored() {
		c.JSON(http.StatusOK, result)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
