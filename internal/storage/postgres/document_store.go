package postgres

import (
	"context"
	"fmt"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// DocumentStore implements jobs.DocumentStore.
type DocumentStore struct {
	db DB
}

// NewDocumentStore wires a document store on the given pool.
func NewDocumentStore(db DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// ListByKind returns the user's stored documents of one kind.
func (s *DocumentStore) ListByKind(ctx context.Context, userID int64, kind string) ([]jobs.Document, error) {
	query := `
		SELECT id, user_id, name, kind, content
		FROM documents WHERE user_id = $1 AND kind = $2 ORDER BY id;
	`
	rows, err := s.db.Query(ctx, query, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []jobs.Document
	for rows.Next() {
		var doc jobs.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Name, &doc.Kind, &doc.Content); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
