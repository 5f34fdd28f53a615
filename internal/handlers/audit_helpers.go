package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crewlink/internal/middleware"
	"crewlink/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		return &userID
	}
	return nil
}

// currentUser is the authenticated caller. Routes are always behind AuthMiddleware.
func currentUser(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func audit(c *gin.Context, emitter *telemetry.AuditEmitter, text string, fields map[string]string) {
	emitter.Emit(c.Request.Context(), telemetry.Record{
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		Fields:    fields,
	})
}
