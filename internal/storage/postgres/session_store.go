package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// SessionStore implements jobs.SessionStore.
type SessionStore struct {
	db DB
}

// NewSessionStore wires a session store on the given pool.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save overwrites the user's session blob wholesale.
func (s *SessionStore) Save(ctx context.Context, blob jobs.SessionBlob) error {
	query := `
		INSERT INTO session_blobs (user_id, data, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			last_updated = EXCLUDED.last_updated;
	`
	_, err := s.db.Exec(ctx, query, blob.UserID, blob.Data, blob.LastUpdated)
	if err != nil {
		return fmt.Errorf("save session blob: %w", err)
	}
	return nil
}

// Load returns the user's session blob or jobs.ErrNotFound.
func (s *SessionStore) Load(ctx context.Context, userID int64) (jobs.SessionBlob, error) {
	query := `SELECT user_id, data, last_updated FROM session_blobs WHERE user_id = $1;`
	var blob jobs.SessionBlob
	err := s.db.QueryRow(ctx, query, userID).Scan(&blob.UserID, &blob.Data, &blob.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.SessionBlob{}, jobs.ErrNotFound
		}
		return jobs.SessionBlob{}, fmt.Errorf("load session blob: %w", err)
	}
	return blob, nil
}
