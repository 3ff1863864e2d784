package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

const letterColumns = `id, user_id, posting_id, ordinal, subject, greeting,
	introduction, experience, motivation, conclusion, closing, recipient_info`

// LetterStore implements jobs.CoverLetterStore.
type LetterStore struct {
	db DB
}

// NewLetterStore wires a cover-letter store on the given pool.
func NewLetterStore(db DB) *LetterStore {
	return &LetterStore{db: db}
}

// Insert stores a letter with the next free ordinal for its (user, posting)
// pair and returns the stored row.
func (s *LetterStore) Insert(ctx context.Context, letter jobs.CoverLetter) (jobs.CoverLetter, error) {
	query := `
		INSERT INTO cover_letters (user_id, posting_id, ordinal, subject, greeting,
			introduction, experience, motivation, conclusion, closing, recipient_info)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(ordinal), 0) + 1 FROM cover_letters
				WHERE user_id = $1 AND posting_id = $2),
			$3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + letterColumns + `;
	`
	stored, err := scanLetter(s.db.QueryRow(ctx, query,
		letter.UserID, letter.PostingID, letter.Subject, letter.Greeting,
		letter.Introduction, letter.Experience, letter.Motivation,
		letter.Conclusion, letter.Closing, letter.RecipientInfo))
	if err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("insert letter: %w", err)
	}
	return stored, nil
}

// GetLatest returns the newest letter for a (user, posting) pair or
// jobs.ErrNotFound.
func (s *LetterStore) GetLatest(ctx context.Context, userID, postingID int64) (jobs.CoverLetter, error) {
	query := `
		SELECT ` + letterColumns + `, pdf FROM cover_letters
		WHERE user_id = $1 AND posting_id = $2
		ORDER BY ordinal DESC LIMIT 1;
	`
	return s.getOne(ctx, query, userID, postingID)
}

// GetByOrdinal returns the Nth letter for a (user, posting) pair or
// jobs.ErrNotFound.
func (s *LetterStore) GetByOrdinal(ctx context.Context, userID, postingID int64, ordinal int) (jobs.CoverLetter, error) {
	query := `
		SELECT ` + letterColumns + `, pdf FROM cover_letters
		WHERE user_id = $1 AND posting_id = $2 AND ordinal = $3;
	`
	return s.getOne(ctx, query, userID, postingID, ordinal)
}

func (s *LetterStore) getOne(ctx context.Context, query string, args ...any) (jobs.CoverLetter, error) {
	var letter jobs.CoverLetter
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&letter.ID, &letter.UserID, &letter.PostingID, &letter.Ordinal,
		&letter.Subject, &letter.Greeting, &letter.Introduction, &letter.Experience,
		&letter.Motivation, &letter.Conclusion, &letter.Closing,
		&letter.RecipientInfo, &letter.PDF)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.CoverLetter{}, jobs.ErrNotFound
		}
		return jobs.CoverLetter{}, fmt.Errorf("get letter: %w", err)
	}
	return letter, nil
}

// AttachPDF stores the rendered bytes on an existing letter.
func (s *LetterStore) AttachPDF(ctx context.Context, letterID int64, pdf []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE cover_letters SET pdf = $1 WHERE id = $2;`, pdf, letterID)
	if err != nil {
		return fmt.Errorf("attach pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// DeleteForPosting removes every letter attached to a posting.
func (s *LetterStore) DeleteForPosting(ctx context.Context, postingID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cover_letters WHERE posting_id = $1;`, postingID); err != nil {
		return fmt.Errorf("delete letters for posting: %w", err)
	}
	return nil
}

func scanLetter(row rowScanner) (jobs.CoverLetter, error) {
	var letter jobs.CoverLetter
	err := row.Scan(
		&letter.ID, &letter.UserID, &letter.PostingID, &letter.Ordinal,
		&letter.Subject, &letter.Greeting, &letter.Introduction, &letter.Experience,
		&letter.Motivation, &letter.Conclusion, &letter.Closing, &letter.RecipientInfo)
	return letter, err
}
