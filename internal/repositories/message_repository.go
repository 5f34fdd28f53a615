package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, bool, error)
	ListRoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, messageID string) (models.ChatMessage, error)
	AdvanceStatus(ctx context.Context, messageID string, status models.MessageStatus) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, sender_id, receiver_id, content, message_type, status, client_message_id, created_at`

// AppendMessage stores msg, creating its room on first use, and moves the room summary
// forward. The second return value is false when msg.ClientMessageID matched an earlier
// message from the same sender; that message is returned instead.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.ChatMessage) (stored models.ChatMessage, created bool, err error) {
	if msg.ClientMessageID != nil {
		existing, err := r.findByClientID(ctx, r.db, msg.SenderID, *msg.ClientMessageID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return models.ChatMessage{}, false, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, false, errors.Wrap(err, "messageRepo.AppendMessage.Begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	p1, p2 := models.OrderedPair(msg.SenderID, msg.ReceiverID)
	if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO chat_rooms (room_id, participant1_id, participant2_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT (room_id) DO NOTHING`), msg.RoomID, p1, p2, msg.Timestamp, msg.Timestamp); err != nil {
		return models.ChatMessage{}, false, errors.Wrap(err, "messageRepo.AppendMessage.InsertRoom")
	}

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO chat_messages
        (id, room_id, sender_id, receiver_id, content, message_type, status, client_message_id, created_at)
        VALUES (:id, :room_id, :sender_id, :receiver_id, :content, :message_type, :status, :client_message_id, :created_at)`, msg); err != nil {
		if isUniqueViolation(err) && msg.ClientMessageID != nil {
			tx.Rollback()
			existing, findErr := r.findByClientID(ctx, r.db, msg.SenderID, *msg.ClientMessageID)
			err = nil
			return existing, false, findErr
		}
		return models.ChatMessage{}, false, errors.Wrap(err, "messageRepo.AppendMessage.InsertMessage")
	}

	// the summary only moves forward in (timestamp, id) order so a slower concurrent
	// sender cannot overwrite a newer message
	if _, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE chat_rooms SET
            last_message_id = ?, last_message_content = ?, last_message_sender_id = ?,
            last_message_status = ?, last_message_at = ?, updated_at = ?
        WHERE room_id = ? AND (last_message_at IS NULL OR last_message_at < ?
            OR (last_message_at = ? AND last_message_id < ?))`),
		msg.ID, msg.Content, msg.SenderID, msg.Status, msg.Timestamp, msg.Timestamp,
		msg.RoomID, msg.Timestamp, msg.Timestamp, msg.ID); err != nil {
		return models.ChatMessage{}, false, errors.Wrap(err, "messageRepo.AppendMessage.UpdateRoom")
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, false, errors.Wrap(err, "messageRepo.AppendMessage.Commit")
	}
	return msg, true, nil
}

// ListRoomMessages returns the room's messages ordered by timestamp, then id.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(`SELECT `+messageColumns+` FROM chat_messages
        WHERE room_id = ?
        ORDER BY created_at ASC, id ASC`), roomID)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListRoomMessages")
	}
	return msgs, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, errors.Wrap(err, "messageRepo.GetMessage")
	}
	return msg, nil
}

// AdvanceStatus sets the message status only when it ranks above the stored one and
// mirrors it on the room summary when the message is the room's last. It returns false
// when nothing changed.
func (r *MessageRepo) AdvanceStatus(ctx context.Context, messageID string, status models.MessageStatus) (changed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.Begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE chat_messages SET status = ?
        WHERE id = ? AND (CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END) < ?`),
		status, messageID, status.Rank())
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.Update")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.RowsAffected")
	}
	if count == 0 {
		err = tx.Rollback()
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.Rollback")
	}

	if _, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE chat_rooms SET last_message_status = ?
        WHERE last_message_id = ?`), status, messageID); err != nil {
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.UpdateRoom")
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "messageRepo.AdvanceStatus.Commit")
	}
	return true, nil
}

func (r *MessageRepo) findByClientID(ctx context.Context, q sqlx.QueryerContext, senderID, clientID string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := sqlx.GetContext(ctx, q, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM chat_messages
        WHERE sender_id = ? AND client_message_id = ?`), senderID, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, errors.Wrap(err, "messageRepo.findByClientID")
	}
	return msg, nil
}
