package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"crewlink/internal/models"
)

// ProfileRepository reads display fields owned by the external profile store.
type ProfileRepository interface {
	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error)
	UpsertProfile(ctx context.Context, profile models.ProfileRecord) error
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfiles fetches the profiles of userIDs in one query. Unknown ids are absent from
// the result.
func (r *ProfileRepo) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, display_name, avatar_url, department_name, role_name, ship_name, cruise_line_name
        FROM crew_profiles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "profileRepo.GetProfiles.In")
	}

	var records []models.ProfileRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "profileRepo.GetProfiles")
	}
	for _, rec := range records {
		result[rec.UserID] = rec.Profile
	}
	return result, nil
}

// UpsertProfile writes a profile row. The service never calls it on the request path;
// it exists for the seed command and tests.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, profile models.ProfileRecord) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO crew_profiles
        (user_id, display_name, avatar_url, department_name, role_name, ship_name, cruise_line_name)
        VALUES (:user_id, :display_name, :avatar_url, :department_name, :role_name, :ship_name, :cruise_line_name)
        ON CONFLICT (user_id) DO UPDATE SET
            display_name = excluded.display_name,
            avatar_url = excluded.avatar_url,
            department_name = excluded.department_name,
            role_name = excluded.role_name,
            ship_name = excluded.ship_name,
            cruise_line_name = excluded.cruise_line_name`, profile)
	return errors.Wrap(err, "profileRepo.UpsertProfile")
}
