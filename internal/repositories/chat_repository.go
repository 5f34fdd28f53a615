package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

var ErrRoomNotFound = errors.New("chat room not found")

// ChatRepository abstracts chat room reads. Rooms are written by MessageRepository when
// a message is appended.
type ChatRepository interface {
	GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const roomColumns = `r.room_id, r.participant1_id, r.participant2_id, r.last_message_id, r.last_message_content,
        r.last_message_sender_id, r.last_message_status, r.last_message_at, r.created_at, r.updated_at`

// GetRoom fetches a room by id.
func (r *ChatRepo) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, r.db.Rebind(`SELECT `+roomColumns+` FROM chat_rooms r WHERE r.room_id = ?`), roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	if err != nil {
		return models.ChatRoom{}, errors.Wrap(err, "chatRepo.GetRoom")
	}
	return room, nil
}

// ListRoomsForUser returns the user's rooms, most recent activity first, with the number
// of incoming messages the user has not read yet.
func (r *ChatRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	query := `SELECT ` + roomColumns + `,
        (SELECT COUNT(*) FROM chat_messages m
            WHERE m.room_id = r.room_id AND m.receiver_id = ? AND m.status <> 'read') AS unread_count
        FROM chat_rooms r
        WHERE r.participant1_id = ? OR r.participant2_id = ?
        ORDER BY r.updated_at DESC, r.room_id ASC`
	rooms := []models.RoomSummary{}
	if err := r.db.SelectContext(ctx, &rooms, r.db.Rebind(query), userID, userID, userID); err != nil {
		return nil, errors.Wrap(err, "chatRepo.ListRoomsForUser")
	}
	return rooms, nil
}

// UnreadCount returns the number of unread incoming messages across all rooms.
func (r *ChatRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM chat_messages WHERE receiver_id = ? AND status <> 'read'`), userID)
	if err != nil {
		return 0, errors.Wrap(err, "chatRepo.UnreadCount")
	}
	return count, nil
}
