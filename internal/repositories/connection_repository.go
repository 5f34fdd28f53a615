package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

var (
	ErrRequestNotFound = errors.New("connection request not found")
	// ErrActivePairExists is returned when the pair already has a pending or accepted request.
	ErrActivePairExists = errors.New("active connection request exists for pair")
)

// ConnectionRepository abstracts connection request persistence.
type ConnectionRepository interface {
	CreateRequest(ctx context.Context, req models.ConnectionRequest) error
	GetRequest(ctx context.Context, requestID string) (models.ConnectionRequest, error)
	FindActive(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error)
	Latest(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error)
	ResolvePending(ctx context.Context, requestID, receiverID string, status models.RequestStatus, at time.Time) (bool, error)
	ListIncomingPending(ctx context.Context, userID string) ([]models.RequestView, error)
	ListOutgoingPending(ctx context.Context, userID string) ([]models.RequestView, error)
	ListAccepted(ctx context.Context, userID string) ([]models.RequestView, error)
}

// ConnectionRepo is a sqlx implementation of ConnectionRepository.
type ConnectionRepo struct {
	db *sqlx.DB
}

// NewConnectionRepo constructs a ConnectionRepo.
func NewConnectionRepo(db *sqlx.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

const requestColumns = `r.id, r.sender_id, r.receiver_id, r.user_low, r.user_high, r.message, r.status, r.created_at, r.responded_at`

const profileColumns = `COALESCE(p.display_name, '') AS display_name,
        COALESCE(p.avatar_url, '') AS avatar_url,
        COALESCE(p.department_name, '') AS department_name,
        COALESCE(p.role_name, '') AS role_name,
        COALESCE(p.ship_name, '') AS ship_name,
        COALESCE(p.cruise_line_name, '') AS cruise_line_name`

// CreateRequest inserts a pending request. The partial unique index on the sorted pair
// rejects a second active request, which surfaces as ErrActivePairExists.
func (r *ConnectionRepo) CreateRequest(ctx context.Context, req models.ConnectionRequest) error {
	req.UserLow, req.UserHigh = models.OrderedPair(req.SenderID, req.ReceiverID)
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO connection_requests
        (id, sender_id, receiver_id, user_low, user_high, message, status, created_at, responded_at)
        VALUES (:id, :sender_id, :receiver_id, :user_low, :user_high, :message, :status, :created_at, :responded_at)`, req)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActivePairExists
		}
		return errors.Wrap(err, "connectionRepo.CreateRequest")
	}
	return nil
}

// GetRequest fetches a request by id.
func (r *ConnectionRepo) GetRequest(ctx context.Context, requestID string) (models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM connection_requests r WHERE r.id = ?`), requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConnectionRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.ConnectionRequest{}, errors.Wrap(err, "connectionRepo.GetRequest")
	}
	return req, nil
}

// FindActive returns the pending or accepted request of the pair, in either direction.
func (r *ConnectionRepo) FindActive(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error) {
	low, high := models.OrderedPair(userID, otherUserID)
	var req models.ConnectionRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM connection_requests r
        WHERE r.user_low = ? AND r.user_high = ? AND r.status IN ('pending', 'accepted')`), low, high)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConnectionRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.ConnectionRequest{}, errors.Wrap(err, "connectionRepo.FindActive")
	}
	return req, nil
}

// Latest returns the most recent request of the pair regardless of status.
func (r *ConnectionRepo) Latest(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error) {
	low, high := models.OrderedPair(userID, otherUserID)
	var req models.ConnectionRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM connection_requests r
        WHERE r.user_low = ? AND r.user_high = ?
        ORDER BY CASE WHEN r.status IN ('pending', 'accepted') THEN 0 ELSE 1 END, r.created_at DESC, r.id DESC
        LIMIT 1`), low, high)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConnectionRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.ConnectionRequest{}, errors.Wrap(err, "connectionRepo.Latest")
	}
	return req, nil
}

// ResolvePending moves a pending request to status. It only succeeds while the row is
// still pending, so of two racing responders exactly one gets true.
func (r *ConnectionRepo) ResolvePending(ctx context.Context, requestID, receiverID string, status models.RequestStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE connection_requests SET status = ?, responded_at = ?
        WHERE id = ? AND receiver_id = ? AND status = 'pending'`), status, at, requestID, receiverID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrActivePairExists
		}
		return false, errors.Wrap(err, "connectionRepo.ResolvePending")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "connectionRepo.ResolvePending.RowsAffected")
	}
	return count == 1, nil
}

// ListIncomingPending returns requests waiting on userID, with the sender's profile.
func (r *ConnectionRepo) ListIncomingPending(ctx context.Context, userID string) ([]models.RequestView, error) {
	return r.listViews(ctx, `SELECT `+requestColumns+`, `+profileColumns+`
        FROM connection_requests r
        LEFT JOIN crew_profiles p ON p.user_id = r.sender_id
        WHERE r.receiver_id = ? AND r.status = 'pending'
        ORDER BY r.created_at DESC, r.id DESC`, userID)
}

// ListOutgoingPending returns requests userID sent that are still pending, with the
// receiver's profile.
func (r *ConnectionRepo) ListOutgoingPending(ctx context.Context, userID string) ([]models.RequestView, error) {
	return r.listViews(ctx, `SELECT `+requestColumns+`, `+profileColumns+`
        FROM connection_requests r
        LEFT JOIN crew_profiles p ON p.user_id = r.receiver_id
        WHERE r.sender_id = ? AND r.status = 'pending'
        ORDER BY r.created_at DESC, r.id DESC`, userID)
}

// ListAccepted returns the accepted requests of userID with the counterpart's profile.
func (r *ConnectionRepo) ListAccepted(ctx context.Context, userID string) ([]models.RequestView, error) {
	return r.listViews(ctx, `SELECT `+requestColumns+`, `+profileColumns+`
        FROM connection_requests r
        LEFT JOIN crew_profiles p ON p.user_id = CASE WHEN r.sender_id = ? THEN r.receiver_id ELSE r.sender_id END
        WHERE (r.sender_id = ? OR r.receiver_id = ?) AND r.status = 'accepted'
        ORDER BY r.responded_at DESC, r.id DESC`, userID, userID, userID)
}

func (r *ConnectionRepo) listViews(ctx context.Context, query string, args ...interface{}) ([]models.RequestView, error) {
	views := []models.RequestView{}
	if err := r.db.SelectContext(ctx, &views, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "connectionRepo.listViews")
	}
	return views, nil
}
