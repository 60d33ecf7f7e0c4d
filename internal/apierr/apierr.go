// Package apierr maps workflow errors onto HTTP responses.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/workflow"
)

const (
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeInsufficientBudget = "INSUFFICIENT_BUDGET"
	CodeReasonRequired     = "REASON_REQUIRED"
	CodeValidation         = "VALIDATION"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

// Body builds the status and JSON body for err.
func Body(err error) (int, gin.H) {
	var (
		forbidden  *workflow.ForbiddenError
		invalid    *workflow.InvalidTransitionError
		budget     *workflow.InsufficientBudgetError
		reason     *workflow.ReasonRequiredError
		conflict   *workflow.ConflictError
		validation *workflow.ValidationError
	)
	switch {
	case errors.As(err, &forbidden):
		return http.StatusForbidden, gin.H{
			"error": err.Error(), "code": CodeForbidden,
			"role": forbidden.Role, "action": forbidden.Action,
		}
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(), "code": CodeInvalidTransition,
			"entity_type": invalid.Entity, "from": invalid.From, "to": invalid.To,
		}
	case errors.As(err, &budget):
		return http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(), "code": CodeInsufficientBudget,
			"available": budget.Available, "requested": budget.Requested,
		}
	case errors.As(err, &reason):
		return http.StatusBadRequest, gin.H{
			"error": err.Error(), "code": CodeReasonRequired,
			"target": reason.Target,
		}
	case errors.As(err, &conflict):
		return http.StatusConflict, gin.H{
			"error": err.Error(), "code": CodeConflict,
			"expected_version": conflict.Expected, "actual_version": conflict.Actual,
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, gin.H{
			"error": err.Error(), "code": CodeValidation,
			"field": validation.Field,
		}
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error(), "code": CodeNotFound}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal server error", "code": CodeInternal}
	}
}

// Respond writes err. Unclassified errors are logged and hidden from the client.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	status, body := Body(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

// BadRequest reports a malformed body or query.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeValidation})
}

// Unauthenticated is written when a handler runs without an actor.
func Unauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "code": "UNAUTHORIZED"})
}
