package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

var postingColumnNames = []string{
	"id", "external_id", "title", "company", "description", "link", "location",
	"posted_date", "contract_type", "workload", "company_info", "company_url",
	"categories", "quick_apply", "created_at",
}

func samplePosting(now time.Time) jobs.Posting {
	return jobs.Posting{
		ID:          42,
		ExternalID:  "posting-0042",
		Title:       "Backend Engineer",
		Company:     "Acme AG",
		Description: "We build reliable backends.",
		Link:        "https://example.test/jobs?jobid=posting-0042",
		Location:    "Zurich",
		PostedDate:  "2 days ago",
		Contract:    "Unlimited",
		Workload:    "80 - 100%",
		CompanyInfo: "Acme ships infrastructure.",
		CompanyURL:  "https://acme.test",
		Categories:  "Engineering, IT",
		QuickApply:  true,
		CreatedAt:   now,
	}
}

func postingRow(p jobs.Posting) *pgxmock.Rows {
	return pgxmock.NewRows(postingColumnNames).AddRow(
		p.ID, p.ExternalID, p.Title, p.Company, p.Description, p.Link, p.Location,
		p.PostedDate, p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL,
		p.Categories, p.QuickApply, p.CreatedAt)
}

func TestPostingInsertReturnsCreatedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	p := samplePosting(now)

	mock.ExpectQuery("INSERT INTO postings").
		WithArgs(
			p.ExternalID, p.Title, p.Company, p.Description, p.Link, p.Location,
			p.PostedDate, p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL,
			p.Categories, p.QuickApply, p.CreatedAt,
		).
		WillReturnRows(postingRow(p))

	store := NewPostingStore(mock)
	stored, created, err := store.Insert(context.Background(), p)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, p, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingInsertConflictReturnsExistingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	earlier := time.Unix(1690000000, 0).UTC()
	existing := samplePosting(earlier)
	incoming := samplePosting(time.Unix(1700000000, 0).UTC())

	// The conflicting insert returns no row; the read-back yields the row
	// the first writer stored and created stays false.
	mock.ExpectQuery("INSERT INTO postings").
		WithArgs(
			incoming.ExternalID, incoming.Title, incoming.Company, incoming.Description,
			incoming.Link, incoming.Location, incoming.PostedDate, incoming.Contract,
			incoming.Workload, incoming.CompanyInfo, incoming.CompanyURL,
			incoming.Categories, incoming.QuickApply, incoming.CreatedAt,
		).
		WillReturnRows(pgxmock.NewRows(postingColumnNames))
	mock.ExpectQuery("FROM postings WHERE external_id").
		WithArgs(incoming.ExternalID).
		WillReturnRows(postingRow(existing))

	store := NewPostingStore(mock)
	stored, created, err := store.Insert(context.Background(), incoming)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, earlier, stored.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingGetByExternalIDMapsNoRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM postings WHERE external_id").
		WithArgs("missing-0001").
		WillReturnRows(pgxmock.NewRows(postingColumnNames))

	store := NewPostingStore(mock)
	_, err = store.GetByExternalID(context.Background(), "missing-0001")
	require.ErrorIs(t, err, jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingListQuickApply(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	first := samplePosting(now)
	second := samplePosting(now)
	second.ID = 43
	second.ExternalID = "posting-0043"

	rows := pgxmock.NewRows(postingColumnNames)
	for _, p := range []jobs.Posting{first, second} {
		rows.AddRow(
			p.ID, p.ExternalID, p.Title, p.Company, p.Description, p.Link, p.Location,
			p.PostedDate, p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL,
			p.Categories, p.QuickApply, p.CreatedAt)
	}
	mock.ExpectQuery("FROM postings WHERE quick_apply ORDER BY id").
		WillReturnRows(rows)

	store := NewPostingStore(mock)
	postings, err := store.ListQuickApply(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 2)
	require.Equal(t, "posting-0042", postings[0].ExternalID)
	require.Equal(t, "posting-0043", postings[1].ExternalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingUpdateUnknownRowIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := samplePosting(time.Unix(1700000000, 0).UTC())
	mock.ExpectExec("UPDATE postings").
		WithArgs(
			p.Title, p.Company, p.Description, p.Link, p.Location, p.PostedDate,
			p.Contract, p.Workload, p.CompanyInfo, p.CompanyURL, p.Categories,
			p.QuickApply, p.ExternalID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostingStore(mock)
	require.ErrorIs(t, store.Update(context.Background(), p), jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingDeleteRemovesLettersInSameTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM cover_letters").
		WithArgs("posting-0042").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM postings").
		WithArgs("posting-0042").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	store := NewPostingStore(mock)
	require.NoError(t, store.Delete(context.Background(), "posting-0042"))
	require.NoError(t, mock.ExpectationsWereMet())
}
