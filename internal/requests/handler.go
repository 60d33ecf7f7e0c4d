package requests

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/apierr"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/workflow"
)

// Handler handles HTTP requests for simulation requests
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new requests handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers request routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.POST("", h.createRequest)
		requests.GET("", h.listRequests)
		requests.GET("/search", h.search)
		requests.GET("/:id", h.getRequest)
		requests.DELETE("/:id", h.deleteRequest)
		requests.POST("/:id/actions/:action", h.executeAction)
		requests.GET("/:id/allowed-actions", h.allowedActions)
		requests.PUT("/:id/title", h.updateTitle)
		requests.PUT("/:id/description", h.updateDescription)
		requests.PUT("/:id/requester", h.reassignRequester)
		requests.POST("/:id/title-changes", h.proposeTitleChange)
		requests.GET("/:id/title-changes", h.listTitleChanges)
		requests.GET("/:id/discussions", h.listDiscussions)
		requests.POST("/:id/comments", h.addComment)
		requests.GET("/:id/comments", h.listComments)
		requests.POST("/:id/time-entries", h.logTime)
		requests.GET("/:id/time-entries", h.listTimeEntries)
	}
	router.POST("/title-changes/:id/review", h.reviewTitleChange)
}

// createRequest handles POST /api/v1/requests
func (h *Handler) createRequest(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	r, err := h.service.CreateRequest(c.Request.Context(), actor, req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// listRequests handles GET /api/v1/requests
func (h *Handler) listRequests(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	q := ListQuery{
		ProjectID:  c.Query("project_id"),
		AssignedTo: c.Query("assigned_to"),
		CreatedBy:  c.Query("created_by"),
		Limit:      getIntParam(c, "limit", 50),
		Offset:     getIntParam(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		q.Statuses = strings.Split(status, ",")
	}
	q.NeedsAttention = getBoolParam(c, "needs_attention")
	q.Archived = getBoolParam(c, "archived")

	views, err := h.service.ListRequests(c.Request.Context(), actor, q)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": views, "count": len(views)})
}

// search handles GET /api/v1/requests/search?q=
func (h *Handler) search(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	views, err := h.service.Search(c.Request.Context(), actor, c.Query("q"), getIntParam(c, "limit", 20))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": views, "count": len(views)})
}

// getRequest handles GET /api/v1/requests/:id
func (h *Handler) getRequest(c *gin.Context) {
	r, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// deleteRequest handles DELETE /api/v1/requests/:id
func (h *Handler) deleteRequest(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	if err := h.service.DeleteRequest(c.Request.Context(), actor, c.Param("id")); err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// executeAction handles POST /api/v1/requests/:id/actions/:action
func (h *Handler) executeAction(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	action, err := workflow.ParseRequestAction(c.Param("action"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	r, err := h.service.Execute(c.Request.Context(), actor, c.Param("id"), action, ActionInput{
		ExpectedVersion: req.Version,
		Extra:           req.Extra,
	})
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// allowedActions handles GET /api/v1/requests/:id/allowed-actions
func (h *Handler) allowedActions(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	allowed, err := h.service.AllowedActions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, allowed)
}

// updateTitle handles PUT /api/v1/requests/:id/title
func (h *Handler) updateTitle(c *gin.Context) {
	h.updateText(c, h.service.UpdateTitle)
}

// updateDescription handles PUT /api/v1/requests/:id/description
func (h *Handler) updateDescription(c *gin.Context) {
	h.updateText(c, h.service.UpdateDescription)
}

func (h *Handler) updateText(c *gin.Context, update func(context.Context, workflow.Actor, string, UpdateTextRequest) (*Request, error)) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	r, err := update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// reassignRequester handles PUT /api/v1/requests/:id/requester
func (h *Handler) reassignRequester(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req ReassignRequesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	r, err := h.service.ReassignRequester(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// proposeTitleChange handles POST /api/v1/requests/:id/title-changes
func (h *Handler) proposeTitleChange(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req ProposeTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	tc, err := h.service.ProposeTitleChange(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tc)
}

// listTitleChanges handles GET /api/v1/requests/:id/title-changes
func (h *Handler) listTitleChanges(c *gin.Context) {
	list, err := h.service.ListTitleChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title_changes": list})
}

// reviewTitleChange handles POST /api/v1/title-changes/:id/review
func (h *Handler) reviewTitleChange(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req ReviewTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	tc, err := h.service.ReviewTitleChange(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tc)
}

// listDiscussions handles GET /api/v1/requests/:id/discussions
func (h *Handler) listDiscussions(c *gin.Context) {
	list, err := h.service.ListDiscussions(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discussions": list})
}

// addComment handles POST /api/v1/requests/:id/comments
func (h *Handler) addComment(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// listComments handles GET /api/v1/requests/:id/comments
func (h *Handler) listComments(c *gin.Context) {
	list, err := h.service.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list})
}

// logTime handles POST /api/v1/requests/:id/time-entries
func (h *Handler) logTime(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		apierr.Unauthenticated(c)
		return
	}
	var req TimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}
	entry, err := h.service.LogTime(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// listTimeEntries handles GET /api/v1/requests/:id/time-entries
func (h *Handler) listTimeEntries(c *gin.Context) {
	list, err := h.service.ListTimeEntries(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_entries": list})
}

func getIntParam(c *gin.Context, key string, defaultValue int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getBoolParam(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
