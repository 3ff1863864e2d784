package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// ProfileStore implements jobs.ProfileStore.
type ProfileStore struct {
	db DB
}

// NewProfileStore wires a profile store on the given pool.
func NewProfileStore(db DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Upsert stores the profile for a (user, site) pair, last write wins.
func (s *ProfileStore) Upsert(ctx context.Context, p jobs.ApplyProfile) error {
	query := `
		INSERT INTO apply_profiles (user_id, site, firstname, lastname, email, phone,
			zip_code, gender, availability, work_permit, auto_answer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, site) DO UPDATE SET
			firstname = EXCLUDED.firstname,
			lastname = EXCLUDED.lastname,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			zip_code = EXCLUDED.zip_code,
			gender = EXCLUDED.gender,
			availability = EXCLUDED.availability,
			work_permit = EXCLUDED.work_permit,
			auto_answer = EXCLUDED.auto_answer;
	`
	_, err := s.db.Exec(ctx, query,
		p.UserID, p.Site, p.FirstName, p.LastName, p.Email, p.Phone,
		p.ZipCode, p.Gender, p.Availability, p.WorkPermit, p.AutoAnswer)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Get loads the profile for a (user, site) pair or returns jobs.ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, userID int64, site string) (jobs.ApplyProfile, error) {
	query := `
		SELECT user_id, site, firstname, lastname, email, phone, zip_code,
			gender, availability, work_permit, auto_answer
		FROM apply_profiles WHERE user_id = $1 AND site = $2;
	`
	var p jobs.ApplyProfile
	err := s.db.QueryRow(ctx, query, userID, site).Scan(
		&p.UserID, &p.Site, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.ZipCode, &p.Gender, &p.Availability, &p.WorkPermit, &p.AutoAnswer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.ApplyProfile{}, jobs.ErrNotFound
		}
		return jobs.ApplyProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
