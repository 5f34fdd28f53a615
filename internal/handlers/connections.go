package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crewlink/internal/models"
	"crewlink/internal/services"
	"crewlink/internal/telemetry"
)

// ConnectionHandler exposes the connection request lifecycle.
type ConnectionHandler struct {
	connections *services.ConnectionService
	audit       *telemetry.AuditEmitter
}

// NewConnectionHandler builds a ConnectionHandler. audit may be nil.
func NewConnectionHandler(connections *services.ConnectionService, audit *telemetry.AuditEmitter) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, audit: audit}
}

// Register mounts the connection routes under r.
func (h *ConnectionHandler) Register(r gin.IRoutes) {
	r.POST("/connections/requests", h.SendRequest)
	r.PUT("/connections/requests/:request_id", h.Respond)
	r.GET("/connections/requests/pending", h.Pending)
	r.GET("/connections/requests/sent", h.Sent)
	r.GET("/connections/status/:user_id", h.Status)
	r.GET("/connections", h.List)
}

// SendRequest asks another crew member to connect.
func (h *ConnectionHandler) SendRequest(c *gin.Context) {
	var req struct {
		ReceiverID string  `json:"receiver_id" binding:"required"`
		Message    *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := h.connections.SendRequest(c.Request.Context(), currentUser(c), req.ReceiverID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "connection request sent", map[string]string{"request_id": created.ID, "receiver_id": created.ReceiverID})
	c.JSON(http.StatusCreated, gin.H{"request": created})
}

// Respond accepts or declines a pending request addressed to the caller.
func (h *ConnectionHandler) Respond(c *gin.Context) {
	var req struct {
		Action models.RespondAction `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	requestID := c.Param("request_id")
	result, err := h.connections.Respond(c.Request.Context(), requestID, currentUser(c), req.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "connection request answered", map[string]string{"request_id": requestID, "action": string(req.Action)})
	c.JSON(http.StatusOK, result)
}

// Pending lists the requests waiting on the caller.
func (h *ConnectionHandler) Pending(c *gin.Context) {
	views, err := h.connections.ListPending(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}

// Sent lists the caller's unanswered outgoing requests.
func (h *ConnectionHandler) Sent(c *gin.Context) {
	views, err := h.connections.ListSent(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}

// Status reports how the caller relates to another user.
func (h *ConnectionHandler) Status(c *gin.Context) {
	other := c.Param("user_id")
	status, err := h.connections.GetStatus(c.Request.Context(), currentUser(c), other)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": other, "status": status})
}

// List returns everyone the caller is connected with.
func (h *ConnectionHandler) List(c *gin.Context) {
	views, err := h.connections.ListConnections(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": views})
}
