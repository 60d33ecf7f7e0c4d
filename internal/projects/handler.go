package projects

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/workflow"
)

// Handler handles HTTP requests for project operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new projects handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers project routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects")
	{
		projects.POST("", h.createProject)
		projects.GET("", h.listProjects)
		projects.GET("/:id", h.getProject)
		projects.POST("/:id/status", h.transitionStatus)
		projects.POST("/:id/extend", h.extendHours)
		projects.GET("/:id/ledger", h.getLedger)
		projects.GET("/:id/history", h.getHistory)
		projects.POST("/:id/milestones", h.addMilestone)
		projects.GET("/:id/milestones", h.listMilestones)
		projects.POST("/:id/milestones/:milestoneId/complete", h.completeMilestone)
	}
}

// createProject handles POST /api/v1/projects
func (h *Handler) createProject(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), actor, req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, NewProjectView(project))
}

// listProjects handles GET /api/v1/projects
func (h *Handler) listProjects(c *gin.Context) {
	list, err := h.service.ListProjects(c.Request.Context(),
		c.Query("status"), c.Query("category"),
		getIntParam(c, "limit", 50), getIntParam(c, "offset", 0))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}

	views := make([]ProjectView, 0, len(list))
	for _, p := range list {
		views = append(views, NewProjectView(p))
	}
	c.JSON(http.StatusOK, gin.H{"projects": views, "count": len(views)})
}

// getProject handles GET /api/v1/projects/:id
func (h *Handler) getProject(c *gin.Context) {
	project, err := h.service.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, NewProjectView(project))
}

// transitionStatus handles POST /api/v1/projects/:id/status
func (h *Handler) transitionStatus(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	target, err := workflow.ParseProjectStatus(req.Status)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}

	project, err := h.service.TransitionStatus(c.Request.Context(), actor, c.Param("id"), TransitionInput{
		Target:          target,
		Reason:          req.Reason,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, NewProjectView(project))
}

// extendHours handles POST /api/v1/projects/:id/extend
func (h *Handler) extendHours(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req ExtendHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	project, err := h.service.ExtendHours(c.Request.Context(), actor, c.Param("id"), ExtendInput{
		Hours:           req.Hours,
		Note:            req.Note,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, NewProjectView(project))
}

// getLedger handles GET /api/v1/projects/:id/ledger
func (h *Handler) getLedger(c *gin.Context) {
	txs, err := h.service.GetLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// getHistory handles GET /api/v1/projects/:id/history
func (h *Handler) getHistory(c *gin.Context) {
	history, err := h.service.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// addMilestone handles POST /api/v1/projects/:id/milestones
func (h *Handler) addMilestone(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	milestone, err := h.service.AddMilestone(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, milestone)
}

// listMilestones handles GET /api/v1/projects/:id/milestones
func (h *Handler) listMilestones(c *gin.Context) {
	milestones, err := h.service.ListMilestones(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// completeMilestone handles POST /api/v1/projects/:id/milestones/:milestoneId/complete
func (h *Handler) completeMilestone(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	milestone, err := h.service.CompleteMilestone(c.Request.Context(), actor, c.Param("id"), c.Param("milestoneId"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func getIntParam(c *gin.Context, key string, defaultValue int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}
