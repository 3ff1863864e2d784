package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

const postingColumns = `id, external_id, title, company, description, link, location,
	posted_date, contract_type, workload, company_info, company_url, categories,
	quick_apply, created_at`

// PostingStore implements jobs.PostingStore.
type PostingStore struct {
	db DB
}

// NewPostingStore wires a posting store on the given pool.
func NewPostingStore(db DB) *PostingStore {
	return &PostingStore{db: db}
}

// Insert stores a posting and reports whether a row was actually created.
// Inserting an already-known external id is a no-op that returns the
// existing row; concurrent fetchers racing on the same id both get the one
// stored posting and exactly one of them sees created true. RETURNING only
// yields a row for a real insert, so the conflict case falls back to the
// read-back.
func (s *PostingStore) Insert(ctx context.Context, p jobs.Posting) (jobs.Posting, bool, error) {
	query := `
		INSERT INTO postings (external_id, title, company, description, link, location,
			posted_date, contract_type, workload, company_info, company_url, categories,
			quick_apply, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING ` + postingColumns + `;`
	inserted, err := scanPosting(s.db.QueryRow(ctx, query,
		p.ExternalID, p.Title, p.Company, p.Description, p.Link, p.Location,
		p.PostedDate, p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL,
		p.Categories, p.QuickApply, p.CreatedAt))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return jobs.Posting{}, false, fmt.Errorf("insert posting: %w", err)
	}
	existing, err := s.GetByExternalID(ctx, p.ExternalID)
	if err != nil {
		return jobs.Posting{}, false, err
	}
	return existing, false, nil
}

// GetByExternalID loads a posting or returns jobs.ErrNotFound.
func (s *PostingStore) GetByExternalID(ctx context.Context, externalID string) (jobs.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings WHERE external_id = $1;`
	p, err := scanPosting(s.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.Posting{}, jobs.ErrNotFound
		}
		return jobs.Posting{}, fmt.Errorf("get posting: %w", err)
	}
	return p, nil
}

// ListQuickApply returns every posting eligible for automated application.
func (s *PostingStore) ListQuickApply(ctx context.Context) ([]jobs.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings WHERE quick_apply ORDER BY id;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list quick-apply postings: %w", err)
	}
	defer rows.Close()

	var postings []jobs.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting row: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// Update overwrites the mutable fields of a posting.
func (s *PostingStore) Update(ctx context.Context, p jobs.Posting) error {
	query := `
		UPDATE postings
		SET title = $1, company = $2, description = $3, link = $4, location = $5,
			posted_date = $6, contract_type = $7, workload = $8, company_info = $9,
			company_url = $10, categories = $11, quick_apply = $12
		WHERE external_id = $13;
	`
	tag, err := s.db.Exec(ctx, query,
		p.Title, p.Company, p.Description, p.Link, p.Location, p.PostedDate,
		p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL, p.Categories,
		p.QuickApply, p.ExternalID)
	if err != nil {
		return fmt.Errorf("update posting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// Delete removes the posting and its dependent cover letters in one
// transaction. Letters do not cascade from postings at the schema level.
func (s *PostingStore) Delete(ctx context.Context, externalID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin posting delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM cover_letters WHERE posting_id = (SELECT id FROM postings WHERE external_id = $1);`,
		externalID); err != nil {
		return fmt.Errorf("delete dependent letters: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM postings WHERE external_id = $1;`, externalID); err != nil {
		return fmt.Errorf("delete posting: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit posting delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (jobs.Posting, error) {
	var p jobs.Posting
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Title, &p.Company, &p.Description, &p.Link,
		&p.Location, &p.PostedDate, &p.Contract, &p.Workload, &p.CompanyInfo,
		&p.CompanyURL, &p.Categories, &p.QuickApply, &p.CreatedAt)
	return p, err
}
