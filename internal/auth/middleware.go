package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/workflow"
)

const actorKey = "actor"

// Middleware authenticates the bearer token and stores the actor on the
// gin context. The websocket endpoint passes its token as ?token=.
func Middleware(tokens *TokenService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string
		if header := c.GetHeader("Authorization"); header != "" {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
			if tokenStr == header {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header", "code": "UNAUTHORIZED"})
				return
			}
		}
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "UNAUTHORIZED"})
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			logger.Debug("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "code": "UNAUTHORIZED"})
			return
		}
		actor, err := claims.Actor()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHORIZED"})
			return
		}

		SetActor(c, actor)
		c.Set("user_id", actor.ID)
		c.Next()
	}
}

// RequireRole lets Admin through and otherwise only the listed roles.
func RequireRole(roles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "code": "UNAUTHORIZED"})
			return
		}
		if actor.Role == workflow.RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role", "code": "FORBIDDEN"})
	}
}

func SetActor(c *gin.Context, actor workflow.Actor) {
	c.Set(actorKey, actor)
}

func ActorFromContext(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}
