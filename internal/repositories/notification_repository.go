package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores per-recipient notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) error
	Get(ctx context.Context, notificationID string) (models.Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	Count(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Delete(ctx context.Context, notificationID, userID string) (bool, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, message, data, is_read, email_queued, push_queued, created_at, updated_at`

// Create inserts a notification record.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO notifications
        (id, user_id, type, title, message, data, is_read, email_queued, push_queued, created_at, updated_at)
        VALUES (:id, :user_id, :type, :title, :message, :data, :is_read, :email_queued, :push_queued, :created_at, :updated_at)`, n)
	return errors.Wrap(err, "notificationRepo.Create")
}

// Get fetches one notification.
func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`), notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	if err != nil {
		return models.Notification{}, errors.Wrap(err, "notificationRepo.Get")
	}
	return n, nil
}

// List returns a page of the user's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = ?`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	args := []interface{}{userID}
	if unreadOnly {
		args = append(args, false)
	}
	args = append(args, limit, offset)

	list := []models.Notification{}
	if err := r.db.SelectContext(ctx, &list, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "notificationRepo.List")
	}
	return list, nil
}

// Count returns how many notifications the user has, optionally only unread ones.
func (r *NotificationRepo) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "notificationRepo.Count")
	}
	return count, nil
}

// MarkRead flags one notification read if it belongs to userID.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET is_read = ?, updated_at = ?
        WHERE id = ? AND user_id = ?`), true, at, notificationID, userID)
	if err != nil {
		return false, errors.Wrap(err, "notificationRepo.MarkRead")
	}
	count, err := res.RowsAffected()
	return count == 1, errors.Wrap(err, "notificationRepo.MarkRead.RowsAffected")
}

// MarkAllRead flags every unread notification of userID read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET is_read = ?, updated_at = ?
        WHERE user_id = ? AND is_read = ?`), true, at, userID, false)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.MarkAllRead")
	}
	count, err := res.RowsAffected()
	return count, errors.Wrap(err, "notificationRepo.MarkAllRead.RowsAffected")
}

// Delete removes a notification owned by userID.
func (r *NotificationRepo) Delete(ctx context.Context, notificationID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM notifications WHERE id = ? AND user_id = ?`), notificationID, userID)
	if err != nil {
		return false, errors.Wrap(err, "notificationRepo.Delete")
	}
	count, err := res.RowsAffected()
	return count == 1, errors.Wrap(err, "notificationRepo.Delete.RowsAffected")
}
