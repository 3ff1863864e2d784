// Package jobs defines core types shared across the discovery-and-apply pipeline.
package jobs

import (
	"regexp"
	"time"
)

// ApplicationStatus represents the outcome persisted for an application attempt.
type ApplicationStatus string

// Application status values. Submitted, failed and error are persisted in
// the application store; expired only ever appears in run results because an
// expired posting is deleted instead of recorded.
const (
	StatusSubmitted ApplicationStatus = "submitted"
	StatusFailed    ApplicationStatus = "failed"
	StatusError     ApplicationStatus = "error"
	StatusExpired   ApplicationStatus = "expired"
)

// Posting is a single job listing keyed by the site-assigned external identifier.
type Posting struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Location    string    `json:"location"`
	PostedDate  string    `json:"posted_date,omitempty"`
	Contract    string    `json:"contract_type,omitempty"`
	Workload    string    `json:"workload,omitempty"`
	CompanyInfo string    `json:"company_info,omitempty"`
	CompanyURL  string    `json:"company_url,omitempty"`
	Categories  string    `json:"categories,omitempty"`
	QuickApply  bool      `json:"quick_apply"`
	CreatedAt   time.Time `json:"created_at"`
}

// ApplyProfile holds the per-user, per-site field values used to fill an
// application form. Fields are optional because forms vary per posting.
type ApplyProfile struct {
	UserID      int64  `json:"user_id"`
	Site        string `json:"site"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ZipCode     string `json:"zip_code"`
	Gender      string `json:"gender"`
	Availability int   `json:"availability"`
	WorkPermit  int    `json:"work_permit"`
	AutoAnswer  bool   `json:"auto_answer_requirements"`
}

// ApplicationRecord is the durable proof that a user has attempted to apply
// to a posting. At most one exists per (user, posting).
type ApplicationRecord struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	PostingID int64             `json:"posting_id"`
	Status    ApplicationStatus `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	AppliedAt time.Time         `json:"applied_at"`
}

// SessionBlob is a compressed snapshot of authenticated browsing state for a
// user. It is always overwritten wholesale, never merged.
type SessionBlob struct {
	UserID      int64     `json:"user_id"`
	Data        []byte    `json:"-"`
	LastUpdated time.Time `json:"last_updated"`
}

// CoverLetter holds the generated textual sections for a (user, posting)
// pair and, once rendered, the PDF bytes. Multiple letters may exist per
// pair; Ordinal addresses the Nth one.
type CoverLetter struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	PostingID     int64  `json:"posting_id"`
	Ordinal       int    `json:"ordinal"`
	Subject       string `json:"subject"`
	Greeting      string `json:"greeting"`
	Introduction  string `json:"introduction"`
	Experience    string `json:"experience"`
	Motivation    string `json:"motivation"`
	Conclusion    string `json:"conclusion"`
	Closing       string `json:"closing"`
	RecipientInfo string `json:"recipient_info,omitempty"`
	PDF           []byte `json:"-"`
}

// Document is a stored user file uploaded alongside applications.
type Document struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"` // cv, motivation, other
	Content []byte `json:"-"`
}

// SearchParams describe one listing search. Zero values are omitted from the
// query URL.
type SearchParams struct {
	Term         string
	GradeMin     int
	GradeMax     int
	PublishedAge int
	Categories   []int
	Regions      []int
}

// CandidateID is a site-assigned posting identifier extracted from a listing
// page.
type CandidateID string

var candidatePattern = regexp.MustCompile(`^[a-zA-Z0-9-]{8,64}$`)

// Valid reports whether the identifier is a well-formed unique token.
// Malformed identifiers are dropped by the scanner, never propagated.
func (c CandidateID) Valid() bool {
	return candidatePattern.MatchString(string(c))
}

// ApplyResult captures the per-posting outcome of one orchestrated
// application attempt.
type ApplyResult struct {
	PostingID  int64             `json:"posting_id"`
	ExternalID string            `json:"external_id"`
	Status     ApplicationStatus `json:"status"`
	Reason     string            `json:"reason,omitempty"`
}

// Report aggregates one orchestrator run. Results are keyed by posting
// identity, not completion order.
type Report struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Errors     int           `json:"errors"`
	Results    []ApplyResult `json:"results"`
}

// PendingReport extends Report with the pre-run eligibility counts.
type PendingReport struct {
	TotalQuickApply int `json:"total_quick_apply"`
	AlreadyApplied  int `json:"already_applied"`
	Pending         int `json:"pending"`
	Report
}
