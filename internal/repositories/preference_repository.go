package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

var ErrPreferenceNotFound = errors.New("notification preference not found")

// PreferenceRepository stores explicit notification preferences. Missing rows mean the
// type's default applies.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string, notificationType models.NotificationType) (models.NotificationPreference, error)
	ListForUser(ctx context.Context, userID string) ([]models.NotificationPreference, error)
	Upsert(ctx context.Context, pref models.NotificationPreference) error
}

// PreferenceRepo is a sqlx implementation of PreferenceRepository.
type PreferenceRepo struct {
	db *sqlx.DB
}

// NewPreferenceRepo constructs a PreferenceRepo.
func NewPreferenceRepo(db *sqlx.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

const preferenceColumns = `user_id, type, email_enabled, push_enabled, in_app_enabled, created_at, updated_at`

func (r *PreferenceRepo) Get(ctx context.Context, userID string, notificationType models.NotificationType) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := r.db.GetContext(ctx, &pref, r.db.Rebind(`SELECT `+preferenceColumns+` FROM notification_preferences
        WHERE user_id = ? AND type = ?`), userID, notificationType)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationPreference{}, ErrPreferenceNotFound
	}
	if err != nil {
		return models.NotificationPreference{}, errors.Wrap(err, "preferenceRepo.Get")
	}
	return pref, nil
}

func (r *PreferenceRepo) ListForUser(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	prefs := []models.NotificationPreference{}
	err := r.db.SelectContext(ctx, &prefs, r.db.Rebind(`SELECT `+preferenceColumns+` FROM notification_preferences
        WHERE user_id = ? ORDER BY type`), userID)
	if err != nil {
		return nil, errors.Wrap(err, "preferenceRepo.ListForUser")
	}
	return prefs, nil
}

// Upsert stores pref, keeping the original created_at on update.
func (r *PreferenceRepo) Upsert(ctx context.Context, pref models.NotificationPreference) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO notification_preferences
        (user_id, type, email_enabled, push_enabled, in_app_enabled, created_at, updated_at)
        VALUES (:user_id, :type, :email_enabled, :push_enabled, :in_app_enabled, :created_at, :updated_at)
        ON CONFLICT (user_id, type) DO UPDATE SET
            email_enabled = excluded.email_enabled,
            push_enabled = excluded.push_enabled,
            in_app_enabled = excluded.in_app_enabled,
            updated_at = excluded.updated_at`, pref)
	return errors.Wrap(err, "preferenceRepo.Upsert")
}
