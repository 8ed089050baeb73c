package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/service"
)

// Identity headers set by the API gateway after it verifies the caller.
// This service trusts them; it is never exposed directly.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

const actorKey = "actor"

// RequireActor rejects requests that arrive without gateway identity
// headers and stashes the parsed actor in the gin context.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		role := models.Role(c.GetHeader(HeaderUserRole))

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if role != models.RoleBuyer && role != models.RoleVendor {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown role"})
			return
		}

		c.Set(actorKey, service.Actor{ID: userID, Role: role})
		c.Next()
	}
}

// ActorFrom returns the actor stashed by RequireActor.
func ActorFrom(c *gin.Context) service.Actor {
	if v, exists := c.Get(actorKey); exists {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}

// RequestID ensures every request carries a request id and echoes it on
// the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = "req_" + uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}
