package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
	"crewlink/internal/observability"
	"crewlink/internal/repositories"
)

// ConnectionChecker reports whether two users may message each other.
type ConnectionChecker interface {
	IsConnected(ctx context.Context, userID, otherUserID string) (bool, error)
}

// RespondResult is the outcome of answering a request. RoomID is set on accept.
type RespondResult struct {
	Request models.ConnectionRequest `json:"request"`
	RoomID  string                   `json:"room_id,omitempty"`
}

// ConnectionService owns the connection request lifecycle.
type ConnectionService struct {
	requests repositories.ConnectionRepository
	router   NotificationRouter
	now      func() time.Time
}

// NewConnectionService wires a ConnectionService.
func NewConnectionService(requests repositories.ConnectionRepository, router NotificationRouter) *ConnectionService {
	return &ConnectionService{requests: requests, router: router, now: utcNow}
}

// SendRequest creates a pending request from senderID to receiverID.
func (s *ConnectionService) SendRequest(ctx context.Context, senderID, receiverID string, message *string) (models.ConnectionRequest, error) {
	if strings.TrimSpace(receiverID) == "" {
		return models.ConnectionRequest{}, apperrors.InvalidArg("receiver_id is required")
	}
	if senderID == receiverID {
		return models.ConnectionRequest{}, apperrors.ErrSelfRequest
	}

	if err := s.checkNoActive(ctx, senderID, receiverID); err != nil {
		return models.ConnectionRequest{}, err
	}

	if message != nil && strings.TrimSpace(*message) == "" {
		message = nil
	}
	req := models.ConnectionRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    message,
		Status:     models.RequestPending,
		CreatedAt:  s.now(),
	}
	req.UserLow, req.UserHigh = models.OrderedPair(senderID, receiverID)

	if err := s.requests.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, repositories.ErrActivePairExists) {
			// lost a race with the other side; report what won
			if checkErr := s.checkNoActive(ctx, senderID, receiverID); checkErr != nil {
				return models.ConnectionRequest{}, checkErr
			}
			return models.ConnectionRequest{}, apperrors.ErrRequestAlreadyPending
		}
		return models.ConnectionRequest{}, apperrors.Internal("failed to create connection request", err)
	}
	observability.IncConnectionRequest("sent")

	s.notify(ctx, DomainEvent{
		Type:        models.NotifyConnectionRequest,
		RecipientID: receiverID,
		ActorID:     senderID,
		Data: map[string]any{
			"request_id": req.ID,
			"sender_id":  senderID,
		},
	})
	return req, nil
}

func (s *ConnectionService) checkNoActive(ctx context.Context, userID, otherUserID string) error {
	active, err := s.requests.FindActive(ctx, userID, otherUserID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Internal("failed to load connection state", err)
	}
	if active.Status == models.RequestAccepted {
		return apperrors.ErrAlreadyConnected
	}
	return apperrors.ErrRequestAlreadyPending
}

// Respond accepts or declines a pending request on behalf of its receiver. Of two racing
// calls exactly one succeeds; the other sees NotFound.
func (s *ConnectionService) Respond(ctx context.Context, requestID, responderID string, action models.RespondAction) (RespondResult, error) {
	if !action.Valid() {
		return RespondResult{}, apperrors.InvalidArg("action must be accept or decline")
	}

	req, err := s.requests.GetRequest(ctx, requestID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		return RespondResult{}, apperrors.ErrRequestNotFound
	}
	if err != nil {
		return RespondResult{}, apperrors.Internal("failed to load connection request", err)
	}
	if req.ReceiverID != responderID {
		return RespondResult{}, apperrors.ErrUnauthorized
	}
	if req.Status != models.RequestPending {
		return RespondResult{}, apperrors.ErrRequestNotFound
	}

	status, notifyType := models.RequestDeclined, models.NotifyConnectionDeclined
	if action == models.ActionAccept {
		status, notifyType = models.RequestAccepted, models.NotifyConnectionAccepted
	}

	at := s.now()
	won, err := s.requests.ResolvePending(ctx, requestID, responderID, status, at)
	if err != nil {
		return RespondResult{}, apperrors.Internal("failed to update connection request", err)
	}
	if !won {
		return RespondResult{}, apperrors.ErrRequestNotFound
	}
	req.Status = status
	req.RespondedAt = &at
	observability.IncConnectionRequest(string(status))

	result := RespondResult{Request: req}
	data := map[string]any{"request_id": req.ID, "responder_id": responderID}
	if status == models.RequestAccepted {
		result.RoomID = models.RoomID(req.SenderID, req.ReceiverID)
		data["room_id"] = result.RoomID
	}
	s.notify(ctx, DomainEvent{
		Type:        notifyType,
		RecipientID: req.SenderID,
		ActorID:     responderID,
		Data:        data,
	})
	return result, nil
}

// GetStatus derives how userID relates to otherUserID from their newest request.
func (s *ConnectionService) GetStatus(ctx context.Context, userID, otherUserID string) (models.ConnectionStatus, error) {
	if userID == otherUserID {
		return models.StatusNone, nil
	}
	latest, err := s.requests.Latest(ctx, userID, otherUserID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		return models.StatusNone, nil
	}
	if err != nil {
		return "", apperrors.Internal("failed to load connection state", err)
	}
	return latest.StatusFor(userID), nil
}

// IsConnected reports whether the pair has an accepted request.
func (s *ConnectionService) IsConnected(ctx context.Context, userID, otherUserID string) (bool, error) {
	if userID == otherUserID {
		return false, nil
	}
	active, err := s.requests.FindActive(ctx, userID, otherUserID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal("failed to load connection state", err)
	}
	return active.Status == models.RequestAccepted, nil
}

// ListPending returns requests waiting on userID with the senders' profiles.
func (s *ConnectionService) ListPending(ctx context.Context, userID string) ([]models.RequestView, error) {
	views, err := s.requests.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load pending requests", err)
	}
	return views, nil
}

// ListSent returns the pending requests userID sent.
func (s *ConnectionService) ListSent(ctx context.Context, userID string) ([]models.RequestView, error) {
	views, err := s.requests.ListOutgoingPending(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load sent requests", err)
	}
	return views, nil
}

// ListConnections returns every user connected to userID.
func (s *ConnectionService) ListConnections(ctx context.Context, userID string) ([]models.ConnectionView, error) {
	views, err := s.requests.ListAccepted(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load connections", err)
	}

	connections := make([]models.ConnectionView, 0, len(views))
	for _, v := range views {
		connectedAt := v.CreatedAt
		if v.RespondedAt != nil {
			connectedAt = *v.RespondedAt
		}
		other := v.Counterpart(userID)
		connections = append(connections, models.ConnectionView{
			UserID:      other,
			ConnectedAt: connectedAt,
			RoomID:      models.RoomID(userID, other),
			Profile:     v.Profile,
		})
	}
	return connections, nil
}

func (s *ConnectionService) notify(ctx context.Context, ev DomainEvent) {
	if _, err := s.router.Route(ctx, ev); err != nil {
		jww.ERROR.Printf("route %s to %s failed: %v", ev.Type, ev.RecipientID, err)
	}
}
