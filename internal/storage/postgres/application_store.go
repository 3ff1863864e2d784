package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// ApplicationStore implements jobs.ApplicationStore.
type ApplicationStore struct {
	db DB
}

// NewApplicationStore wires an application store on the given pool.
func NewApplicationStore(db DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

// Insert records an application attempt. The (user, posting) pair is unique;
// a second insert is a no-op returning the existing record, so concurrent
// orchestrator workers never create two rows.
func (s *ApplicationStore) Insert(ctx context.Context, rec jobs.ApplicationRecord) (jobs.ApplicationRecord, error) {
	query := `
		INSERT INTO applications (user_id, posting_id, status, detail, applied_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, posting_id) DO NOTHING;
	`
	_, err := s.db.Exec(ctx, query, rec.UserID, rec.PostingID, rec.Status, rec.Detail, rec.AppliedAt)
	if err != nil {
		return jobs.ApplicationRecord{}, fmt.Errorf("insert application: %w", err)
	}
	return s.GetByUserAndPosting(ctx, rec.UserID, rec.PostingID)
}

// GetByUserAndPosting loads the record for a (user, posting) pair or returns
// jobs.ErrNotFound.
func (s *ApplicationStore) GetByUserAndPosting(ctx context.Context, userID, postingID int64) (jobs.ApplicationRecord, error) {
	query := `
		SELECT id, user_id, posting_id, status, detail, applied_at
		FROM applications WHERE user_id = $1 AND posting_id = $2;
	`
	var rec jobs.ApplicationRecord
	err := s.db.QueryRow(ctx, query, userID, postingID).Scan(
		&rec.ID, &rec.UserID, &rec.PostingID, &rec.Status, &rec.Detail, &rec.AppliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.ApplicationRecord{}, jobs.ErrNotFound
		}
		return jobs.ApplicationRecord{}, fmt.Errorf("get application: %w", err)
	}
	return rec, nil
}

// ListByUser returns all application records of a user.
func (s *ApplicationStore) ListByUser(ctx context.Context, userID int64) ([]jobs.ApplicationRecord, error) {
	query := `
		SELECT id, user_id, posting_id, status, detail, applied_at
		FROM applications WHERE user_id = $1 ORDER BY id;
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var records []jobs.ApplicationRecord
	for rows.Next() {
		var rec jobs.ApplicationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PostingID, &rec.Status, &rec.Detail, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan application row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
