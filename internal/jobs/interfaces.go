package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// PostingStore persists discovered postings. Insert is idempotent on
// external_id: a duplicate insert returns the existing row with created
// false, never an error.
type PostingStore interface {
	Insert(ctx context.Context, p Posting) (stored Posting, created bool, err error)
	GetByExternalID(ctx context.Context, externalID string) (Posting, error)
	ListQuickApply(ctx context.Context) ([]Posting, error)
	Update(ctx context.Context, p Posting) error
	// Delete removes the posting and its dependent cover letters.
	Delete(ctx context.Context, externalID string) error
}

// ApplicationStore persists application records. Insert is atomic with
// respect to the (user, posting) uniqueness invariant.
type ApplicationStore interface {
	Insert(ctx context.Context, rec ApplicationRecord) (ApplicationRecord, error)
	GetByUserAndPosting(ctx context.Context, userID, postingID int64) (ApplicationRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]ApplicationRecord, error)
}

// ProfileStore persists apply profiles, one per (user, site),
// last-write-wins.
type ProfileStore interface {
	Upsert(ctx context.Context, p ApplyProfile) error
	Get(ctx context.Context, userID int64, site string) (ApplyProfile, error)
}

// SessionStore persists session cache blobs, one per user, overwritten
// wholesale.
type SessionStore interface {
	Save(ctx context.Context, blob SessionBlob) error
	Load(ctx context.Context, userID int64) (SessionBlob, error)
}

// CoverLetterStore persists generated cover letters.
type CoverLetterStore interface {
	Insert(ctx context.Context, letter CoverLetter) (CoverLetter, error)
	GetLatest(ctx context.Context, userID, postingID int64) (CoverLetter, error)
	GetByOrdinal(ctx context.Context, userID, postingID int64, ordinal int) (CoverLetter, error)
	AttachPDF(ctx context.Context, letterID int64, pdf []byte) error
	DeleteForPosting(ctx context.Context, postingID int64) error
}

// DocumentStore retrieves stored user files by kind.
type DocumentStore interface {
	ListByKind(ctx context.Context, userID int64, kind string) ([]Document, error)
}

// LetterGenerator produces cover-letter section text for a (user, posting)
// pair. Implementations call out to a language model; failures are retried
// by the caller with a fixed backoff.
type LetterGenerator interface {
	Generate(ctx context.Context, userID int64, posting Posting) (CoverLetter, error)
}

// PDFRenderer turns letter sections into PDF bytes.
type PDFRenderer interface {
	Render(letter CoverLetter, profile ApplyProfile) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
