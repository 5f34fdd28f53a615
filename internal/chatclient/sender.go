package chatclient

import (
	"context"
	"errors"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
)

// ErrUnknownEntry is returned by Retry for local ids that are not failed entries.
var ErrUnknownEntry = errors.New("no failed entry with this local id")

// API is the server side of a send.
type API interface {
	SendMessage(ctx context.Context, req SendRequest) (models.ChatMessage, error)
}

// SendRequest is the body of POST /chat/send.
type SendRequest struct {
	ReceiverID      string             `json:"receiver_id"`
	Content         string             `json:"content"`
	MessageType     models.MessageType `json:"message_type,omitempty"`
	ClientMessageID string             `json:"client_message_id,omitempty"`
}

// Result identifies the cache entry a send produced.
type Result struct {
	LocalID string
	Message models.ChatMessage
}

// Sender runs the two-phase send: apply locally, commit on the server, then confirm or
// undo the local entry.
type Sender struct {
	api    API
	cache  *Cache
	userID string
}

func NewSender(api API, cache *Cache, userID string) *Sender {
	return &Sender{api: api, cache: cache, userID: userID}
}

// Send applies the message to the cache as pending and commits it. Rejections the
// server will repeat remove the entry; anything else leaves it failed for Retry.
func (s *Sender) Send(ctx context.Context, receiverID, content string, messageType models.MessageType) (Result, error) {
	localID := s.cache.ApplyTentative(models.ChatMessage{
		SenderID:    s.userID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageType,
		Status:      models.MessageSent,
	})
	return s.commit(ctx, localID, receiverID, content, messageType)
}

// Retry resends a failed entry under the same client id, so a send that reached the
// server before failing is not stored twice.
func (s *Sender) Retry(ctx context.Context, localID string) (Result, error) {
	msg, ok := s.cache.Retry(localID)
	if !ok {
		return Result{LocalID: localID}, ErrUnknownEntry
	}
	return s.commit(ctx, localID, msg.ReceiverID, msg.Content, msg.MessageType)
}

func (s *Sender) commit(ctx context.Context, localID, receiverID, content string, messageType models.MessageType) (Result, error) {
	persisted, err := s.api.SendMessage(ctx, SendRequest{
		ReceiverID:      receiverID,
		Content:         content,
		MessageType:     messageType,
		ClientMessageID: localID,
	})
	if err != nil {
		if retryable(err) {
			s.cache.Fail(localID, err)
		} else {
			s.cache.Rollback(localID)
		}
		return Result{LocalID: localID}, err
	}
	s.cache.Confirm(localID, persisted)
	return Result{LocalID: localID, Message: persisted}, nil
}

func retryable(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInternal, apperrors.CodeChannelUnavailable:
		return true
	}
	return false
}
