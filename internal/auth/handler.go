package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/workflow"
)

type Handler struct {
	tokens       *TokenService
	logger       *zap.Logger
	allowDevAuth bool
}

func NewHandler(tokens *TokenService, logger *zap.Logger, allowDevAuth bool) *Handler {
	return &Handler{tokens: tokens, logger: logger, allowDevAuth: allowDevAuth}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me returns the authenticated actor and what their role unlocks.
func (h *Handler) Me(c *gin.Context) {
	actor, ok := ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "code": "UNAUTHORIZED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         actor.ID,
		"name":       actor.Name,
		"role":       actor.Role,
		"privileged": actor.Role.Privileged(),
	})
}

type devTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Role   string `json:"role" binding:"required"`
}

// DevToken mints a token for any identity. Only mounted when
// auth.allow_dev_tokens is set; SSO is expected in front of real deployments.
func (h *Handler) DevToken(c *gin.Context) {
	if !h.allowDevAuth {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "NOT_FOUND"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}
	role, err := workflow.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}
	token, expiresAt, err := h.tokens.Issue(workflow.Actor{ID: req.UserID, Name: req.Name, Role: role})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
}
