package transitions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

type TransitionRequest struct {
	EntityType   string         `json:"entity_type" binding:"required"`
	EntityID     string         `json:"entity_id" binding:"required"`
	TargetStatus string         `json:"target_status" binding:"required"`
	Reason       string         `json:"reason"`
	Version      int            `json:"version"`
	Extra        requests.Extra `json:"extra"`
}

// Handler handles HTTP requests for generic transitions
type Handler struct {
	executor *Executor
	logger   *zap.Logger
}

func NewHandler(executor *Executor, logger *zap.Logger) *Handler {
	return &Handler{executor: executor, logger: logger}
}

// RegisterRoutes registers transition routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/transitions", h.transition)
}

// transition handles POST /api/v1/transitions
func (h *Handler) transition(c *gin.Context) {
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
	entityType, err := workflow.ParseEntityType(req.EntityType)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), Input{
		EntityType:      entityType,
		EntityID:        req.EntityID,
		TargetStatus:    req.TargetStatus,
		Actor:           actor,
		Reason:          req.Reason,
		Extra:           req.Extra,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
