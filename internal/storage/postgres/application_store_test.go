package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

var applicationColumnNames = []string{"id", "user_id", "posting_id", "status", "detail", "applied_at"}

func TestApplicationInsertReadsBackRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	rec := jobs.ApplicationRecord{
		UserID:    7,
		PostingID: 42,
		Status:    jobs.StatusSubmitted,
		AppliedAt: now,
	}

	mock.ExpectExec("INSERT INTO applications").
		WithArgs(rec.UserID, rec.PostingID, rec.Status, rec.Detail, rec.AppliedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM applications WHERE user_id").
		WithArgs(rec.UserID, rec.PostingID).
		WillReturnRows(pgxmock.NewRows(applicationColumnNames).
			AddRow(int64(1), rec.UserID, rec.PostingID, rec.Status, rec.Detail, rec.AppliedAt))

	store := NewApplicationStore(mock)
	stored, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.ID)
	require.Equal(t, jobs.StatusSubmitted, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationInsertConflictKeepsFirstRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := time.Unix(1690000000, 0).UTC()
	rec := jobs.ApplicationRecord{
		UserID:    7,
		PostingID: 42,
		Status:    jobs.StatusSubmitted,
		AppliedAt: time.Unix(1700000000, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO applications").
		WithArgs(rec.UserID, rec.PostingID, rec.Status, rec.Detail, rec.AppliedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM applications WHERE user_id").
		WithArgs(rec.UserID, rec.PostingID).
		WillReturnRows(pgxmock.NewRows(applicationColumnNames).
			AddRow(int64(1), rec.UserID, rec.PostingID, jobs.StatusFailed, "form not converged", first))

	store := NewApplicationStore(mock)
	stored, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusFailed, stored.Status)
	require.Equal(t, first, stored.AppliedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationGetMapsNoRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM applications WHERE user_id").
		WithArgs(int64(7), int64(999)).
		WillReturnRows(pgxmock.NewRows(applicationColumnNames))

	store := NewApplicationStore(mock)
	_, err = store.GetByUserAndPosting(context.Background(), 7, 999)
	require.ErrorIs(t, err, jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationListByUser(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("FROM applications WHERE user_id").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(applicationColumnNames).
			AddRow(int64(1), int64(7), int64(42), jobs.StatusSubmitted, "", now).
			AddRow(int64(2), int64(7), int64(43), jobs.StatusFailed, "session expired", now))

	store := NewApplicationStore(mock)
	records, err := store.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, int64(42), records[0].PostingID)
	require.Equal(t, jobs.StatusFailed, records[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
