package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crewlink/internal/telemetry"
)

// SessionCounter reports live websocket sessions per user.
type SessionCounter interface {
	SessionCount(userID string) int
}

// RegisterDebugRoutes wires operator endpoints for checking the audit pipeline and a
// user's realtime reachability. Nothing is registered unless enabled.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, sessions SessionCounter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.Record{
			Level:     telemetry.LevelWarn,
			Text:      "debug audit probe",
			RequestID: requestIDFromContext(c),
			UserID:    userIDFromContext(c),
			Fields:    map[string]string{"route": c.FullPath()},
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})

	router.GET("/debug/sessions/:user_id", func(c *gin.Context) {
		userID := c.Param("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "sessions": sessions.SessionCount(userID)})
	})
}
