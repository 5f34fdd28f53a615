package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crewlink/internal/models"
	"crewlink/internal/services"
	"crewlink/internal/telemetry"
)

// ChatHandler manages direct chat endpoints.
type ChatHandler struct {
	chat     *services.ChatService
	presence *services.PresenceTracker
	audit    *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler. audit may be nil.
func NewChatHandler(chat *services.ChatService, presence *services.PresenceTracker, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chat: chat, presence: presence, audit: audit}
}

// Register mounts the chat routes under r.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/chat/rooms", h.ListRooms)
	r.GET("/chat/rooms/:room_id/messages", h.RoomMessages)
	r.GET("/chat/messages/:other_user_id", h.Conversation)
	r.POST("/chat/send", h.Send)
	r.PUT("/chat/message-status", h.UpdateMessageStatus)
	r.PUT("/chat/online-status", h.UpdateOnlineStatus)
	r.GET("/chat/user-status/:user_id", h.UserStatus)
	r.GET("/chat/unread-count", h.UnreadCount)
}

// ListRooms returns the caller's rooms, most recent activity first.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	rooms, err := h.chat.ListRooms(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// RoomMessages returns the messages of a room the caller belongs to.
func (h *ChatHandler) RoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	msgs, err := h.chat.ListMessages(c.Request.Context(), roomID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": msgs})
}

// Conversation returns the messages exchanged with another user.
func (h *ChatHandler) Conversation(c *gin.Context) {
	userID := currentUser(c)
	other := c.Param("other_user_id")
	msgs, err := h.chat.ConversationWith(c.Request.Context(), userID, other)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": models.RoomID(userID, other), "messages": msgs})
}

// Send stores a message and pushes it to both participants.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		ReceiverID      string             `json:"receiver_id" binding:"required"`
		Content         string             `json:"content" binding:"required"`
		MessageType     models.MessageType `json:"message_type"`
		ClientMessageID string             `json:"client_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), services.SendMessageInput{
		SenderID:        currentUser(c),
		ReceiverID:      req.ReceiverID,
		Content:         req.Content,
		MessageType:     req.MessageType,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "message sent", map[string]string{"message_id": msg.ID, "room_id": msg.RoomID})
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// UpdateMessageStatus moves a received message to delivered or read.
func (h *ChatHandler) UpdateMessageStatus(c *gin.Context) {
	var req struct {
		MessageID string               `json:"message_id" binding:"required"`
		Status    models.MessageStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.chat.UpdateStatus(c.Request.Context(), currentUser(c), req.MessageID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// UpdateOnlineStatus sets the caller's manual online flag.
func (h *ChatHandler) UpdateOnlineStatus(c *gin.Context) {
	var req struct {
		IsOnline *bool `json:"is_online" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	state := h.presence.SetOnline(currentUser(c), *req.IsOnline)
	c.JSON(http.StatusOK, gin.H{"status": state})
}

// UserStatus reports whether a user is online and when they were last seen.
func (h *ChatHandler) UserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.presence.Status(c.Param("user_id"))})
}

// UnreadCount returns the caller's unread incoming messages across rooms.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	count, err := h.chat.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
