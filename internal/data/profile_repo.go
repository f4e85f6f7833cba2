package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.ProfileRecordStore = (*ProfileRepo)(nil)

// ProfileRepo reads profile rows.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db}
}

// GetProfileByID returns ports.ErrNotFound when no row exists or id is not a UUID.
// NULL columns come back as empty strings.
func (r *ProfileRepo) GetProfileByID(ctx context.Context, id string) (domainauth.ProfileRecord, error) {
	var rec domainauth.ProfileRecord
	err := r.DB.QueryRowContext(ctx, `
		SELECT id::text, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(role, ''),
			COALESCE(institution, ''), COALESCE(department, '')
		FROM profiles WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.FullName, &rec.Email, &rec.Role, &rec.Institution, &rec.Department)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return domainauth.ProfileRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return domainauth.ProfileRecord{}, fmt.Errorf("get profile: %w", err)
	}
	return rec, nil
}
