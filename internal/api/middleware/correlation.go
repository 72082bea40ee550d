package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader is the HTTP header for correlation ID
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey is the key used to store correlation ID in the context
	CorrelationIDKey = "correlation_id"

	// ActorIDHeader carries the identity performing the request. Review and
	// import operations record it; it is set by the authenticating proxy.
	ActorIDHeader = "X-Actor-ID"

	// ActorIDKey is the key used to store the actor ID in the context
	ActorIDKey = "actor_id"
)

// CorrelationID middleware ensures each request has a unique identifier for tracing
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)

		if actorID := c.GetHeader(ActorIDHeader); actorID != "" {
			c.Set(ActorIDKey, actorID)
		}

		c.Next()
	}
}

// GetCorrelationID retrieves the correlation ID from the gin context if present
func GetCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(CorrelationIDKey); exists {
		if correlationID, ok := id.(string); ok {
			return correlationID
		}
	}
	return ""
}

// GetActorID retrieves the actor ID from the gin context, or "system" when
// the request carried none.
func GetActorID(c *gin.Context) string {
	if id, exists := c.Get(ActorIDKey); exists {
		if actorID, ok := id.(string); ok && actorID != "" {
			return actorID
		}
	}
	return "system"
}
