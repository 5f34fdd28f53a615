package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crewlink/internal/models"
	"crewlink/internal/services"
)

// NotificationHandler serves the notification inbox and preferences.
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Register mounts the notification routes under r.
func (h *NotificationHandler) Register(r gin.IRoutes) {
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.GET("/notifications/preferences", h.Preferences)
	r.PUT("/notifications/preferences", h.UpdatePreferences)
	r.PUT("/notifications/read-all", h.MarkAllRead)
	r.PUT("/notifications/:notification_id/read", h.MarkRead)
	r.DELETE("/notifications/:notification_id", h.Delete)
}

// List returns one page of the caller's notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, "limit must be a number")
		return
	}
	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unreadOnly", "false"))
	if err != nil {
		badRequest(c, "unreadOnly must be true or false")
		return
	}

	result, err := h.notifications.List(c.Request.Context(), currentUser(c), page, limit, unreadOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnreadCount returns how many notifications the caller has not read.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks one notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("notification_id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead marks every unread notification read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.Param("notification_id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Preferences returns the caller's channel settings for every type.
func (h *NotificationHandler) Preferences(c *gin.Context) {
	prefs, err := h.notifications.Preferences(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences applies partial channel changes.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req struct {
		Preferences []models.PreferenceUpdate `json:"preferences" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	prefs, err := h.notifications.UpdatePreferences(c.Request.Context(), currentUser(c), req.Preferences)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
