// Package apply orchestrates automated applications: it computes the pending
// set, runs one bounded pipeline per posting and aggregates the outcomes.
package apply

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/form"
	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/letters"
	"github.com/lmeyrat/jobpilot/internal/metrics"
)

// Stores groups the persistence dependencies of the orchestrator.
type Stores struct {
	Postings     jobs.PostingStore
	Applications jobs.ApplicationStore
	Profiles     jobs.ProfileStore
	Letters      jobs.CoverLetterStore
	Documents    jobs.DocumentStore
}

// Sessions provides authenticated browser pages. Satisfied by
// *session.Manager.
type Sessions interface {
	AcquirePage(ctx context.Context, userID int64) (browser.Page, func(), error)
}

// Config bounds the orchestrator and points it at the application surface.
type Config struct {
	// ApplyURL is the application form endpoint; the external id is appended
	// as a path segment.
	ApplyURL string
	// SiteName keys the apply profile lookup.
	SiteName string
	// FillAttempts bounds the convergence loop per posting.
	FillAttempts int
	// UploadWait bounds the wait for in-progress uploads per recheck.
	UploadWait time.Duration
	// DirectApply submits the application instead of saving a draft.
	DirectApply bool
}

// Orchestrator runs the per-posting pipeline with bounded concurrency.
// Per-posting failures stay in that posting's result; only session
// acquisition and store connectivity abort a run.
type Orchestrator struct {
	cfg       Config
	stores    Stores
	sessions  Sessions
	generator jobs.LetterGenerator
	renderer  jobs.PDFRenderer
	checker   *form.Checker
	filler    *form.Filler
	metrics   *metrics.Metrics
	clock     jobs.Clock
	log       *zap.Logger
}

// New wires an orchestrator.
func New(cfg Config, stores Stores, sessions Sessions, generator jobs.LetterGenerator, renderer jobs.PDFRenderer, checker *form.Checker, filler *form.Filler, m *metrics.Metrics, clock jobs.Clock, log *zap.Logger) *Orchestrator {
	if cfg.FillAttempts <= 0 {
		cfg.FillAttempts = 3
	}
	if cfg.UploadWait <= 0 {
		cfg.UploadWait = 30 * time.Second
	}
	return &Orchestrator{
		cfg:       cfg,
		stores:    stores,
		sessions:  sessions,
		generator: generator,
		renderer:  renderer,
		checker:   checker,
		filler:    filler,
		metrics:   m,
		clock:     clock,
		log:       log,
	}
}

// pending computes the eligible postings: quick-apply minus already applied.
// This subtraction is the single source of truth for "pending".
func (o *Orchestrator) pending(ctx context.Context, userID int64) (eligible []jobs.Posting, totalQuickApply, alreadyApplied int, err error) {
	quickApply, err := o.stores.Postings.ListQuickApply(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list quick-apply postings: %w", err)
	}
	records, err := o.stores.Applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list applications: %w", err)
	}
	applied := make(map[int64]bool, len(records))
	for _, rec := range records {
		applied[rec.PostingID] = true
	}

	for _, posting := range quickApply {
		if applied[posting.ID] {
			alreadyApplied++
			continue
		}
		eligible = append(eligible, posting)
	}
	return eligible, len(quickApply), alreadyApplied, nil
}

// PendingCounts reports the eligibility counts without running anything.
func (o *Orchestrator) PendingCounts(ctx context.Context, userID int64) (totalQuickApply, alreadyApplied, pending int, err error) {
	eligible, totalQuickApply, alreadyApplied, err := o.pending(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}
	return totalQuickApply, alreadyApplied, len(eligible), nil
}

// Run applies to every pending posting for the user, capped at
// maxApplications when positive, with at most maxConcurrent postings in
// flight.
func (o *Orchestrator) Run(ctx context.Context, userID int64, maxApplications, maxConcurrent int) (jobs.Report, error) {
	eligible, _, _, err := o.pending(ctx, userID)
	if err != nil {
		return jobs.Report{}, err
	}
	return o.process(ctx, userID, eligible, maxApplications, maxConcurrent)
}

// CheckAndProcessPending reports the eligibility counts before running.
func (o *Orchestrator) CheckAndProcessPending(ctx context.Context, userID int64, maxApplications, maxConcurrent int) (jobs.PendingReport, error) {
	eligible, totalQuickApply, alreadyApplied, err := o.pending(ctx, userID)
	if err != nil {
		return jobs.PendingReport{}, err
	}
	report := jobs.PendingReport{
		TotalQuickApply: totalQuickApply,
		AlreadyApplied:  alreadyApplied,
		Pending:         len(eligible),
	}
	o.log.Info("pending applications",
		zap.Int64("user_id", userID),
		zap.Int("total_quick_apply", totalQuickApply),
		zap.Int("already_applied", alreadyApplied),
		zap.Int("pending", len(eligible)))

	report.Report, err = o.process(ctx, userID, eligible, maxApplications, maxConcurrent)
	return report, err
}

func (o *Orchestrator) process(ctx context.Context, userID int64, eligible []jobs.Posting, maxApplications, maxConcurrent int) (jobs.Report, error) {
	profile, err := o.stores.Profiles.Get(ctx, userID, o.cfg.SiteName)
	if err != nil {
		return jobs.Report{}, fmt.Errorf("load apply profile: %w", err)
	}
	if maxApplications > 0 && len(eligible) > maxApplications {
		eligible = eligible[:maxApplications]
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var (
		mu       sync.Mutex
		results  []jobs.ApplyResult
		abortErr error
		wg       sync.WaitGroup
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sem := make(chan struct{}, maxConcurrent)

	for _, posting := range eligible {
		wg.Add(1)
		go func(posting jobs.Posting) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-sem }()

			result, err := o.applyOne(runCtx, userID, posting, profile)
			if err != nil {
				// Session acquisition is a run-level failure: stop the
				// siblings instead of burning every pending posting.
				mu.Lock()
				if abortErr == nil {
					abortErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			o.metrics.Applications.WithLabelValues(string(result.Status)).Inc()
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(posting)
	}
	wg.Wait()

	// Aggregate by posting identity, not completion order.
	sort.Slice(results, func(i, j int) bool { return results[i].PostingID < results[j].PostingID })

	report := jobs.Report{Total: len(results), Results: results}
	for _, r := range results {
		switch r.Status {
		case jobs.StatusSubmitted:
			report.Successful++
		case jobs.StatusError:
			report.Errors++
		case jobs.StatusFailed:
			report.Failed++
		}
	}
	if abortErr != nil {
		return report, abortErr
	}
	o.log.Info("application run finished",
		zap.Int64("user_id", userID),
		zap.Int("total", report.Total),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
		zap.Int("errors", report.Errors))
	return report, ctx.Err()
}

// applyOne runs the full pipeline for one posting. A panic anywhere in the
// pipeline becomes an Error result and never reaches sibling goroutines. A
// non-nil error means the run itself cannot proceed; no record is written
// for the posting in that case.
func (o *Orchestrator) applyOne(ctx context.Context, userID int64, posting jobs.Posting, profile jobs.ApplyProfile) (result jobs.ApplyResult, runErr error) {
	result = jobs.ApplyResult{PostingID: posting.ID, ExternalID: posting.ExternalID}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("panic while applying",
				zap.String("external_id", posting.ExternalID), zap.Any("panic", r))
			result.Status = jobs.StatusError
			result.Reason = fmt.Sprintf("panic: %v", r)
			runErr = nil
		}
	}()

	letter, err := o.prepareLetter(ctx, userID, posting, profile)
	if err != nil {
		return o.failed(ctx, userID, posting, result, fmt.Sprintf("cover letter: %v", err)), nil
	}
	files, err := o.collectFiles(ctx, userID, posting, profile, letter)
	if err != nil {
		return o.failed(ctx, userID, posting, result, fmt.Sprintf("documents: %v", err)), nil
	}

	page, release, err := o.sessions.AcquirePage(ctx, userID)
	if err != nil {
		// No authenticated session means no posting can be applied to; this
		// aborts the run and leaves the posting pending for the next one.
		return result, fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	outcome, reason := o.converge(ctx, page, posting, profile, files)
	switch outcome {
	case jobs.StatusExpired:
		if err := o.stores.Postings.Delete(ctx, posting.ExternalID); err != nil {
			o.log.Error("expired posting cleanup failed",
				zap.String("external_id", posting.ExternalID), zap.Error(err))
		}
		result.Status = jobs.StatusExpired
		result.Reason = "posting expired"
		return result, nil
	case jobs.StatusSubmitted:
		if err := o.record(ctx, userID, posting, jobs.StatusSubmitted, ""); err != nil {
			result.Status = jobs.StatusError
			result.Reason = fmt.Sprintf("record application: %v", err)
			return result, nil
		}
		result.Status = jobs.StatusSubmitted
		return result, nil
	default:
		return o.failed(ctx, userID, posting, result, reason), nil
	}
}

func (o *Orchestrator) failed(ctx context.Context, userID int64, posting jobs.Posting, result jobs.ApplyResult, reason string) jobs.ApplyResult {
	o.log.Warn("application failed",
		zap.String("external_id", posting.ExternalID), zap.String("reason", reason))
	if ctx.Err() != nil {
		// The run is tearing down; a cancellation is not a durable failure.
		result.Status = jobs.StatusFailed
		result.Reason = reason
		return result
	}
	if err := o.record(ctx, userID, posting, jobs.StatusFailed, reason); err != nil {
		o.log.Error("failed-status record write failed",
			zap.String("external_id", posting.ExternalID), zap.Error(err))
	}
	result.Status = jobs.StatusFailed
	result.Reason = reason
	return result
}

func (o *Orchestrator) record(ctx context.Context, userID int64, posting jobs.Posting, status jobs.ApplicationStatus, detail string) error {
	_, err := o.stores.Applications.Insert(ctx, jobs.ApplicationRecord{
		UserID:    userID,
		PostingID: posting.ID,
		Status:    status,
		Detail:    detail,
		AppliedAt: o.clock.Now(),
	})
	return err
}

// prepareLetter generates the letter text, renders the PDF and persists both.
func (o *Orchestrator) prepareLetter(ctx context.Context, userID int64, posting jobs.Posting, profile jobs.ApplyProfile) (jobs.CoverLetter, error) {
	letter, err := o.generator.Generate(ctx, userID, posting)
	if err != nil {
		o.metrics.LetterGenerations.WithLabelValues("failed").Inc()
		return jobs.CoverLetter{}, err
	}
	o.metrics.LetterGenerations.WithLabelValues("ok").Inc()

	pdf, err := o.renderer.Render(letter, profile)
	if err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("render pdf: %w", err)
	}
	letter.PDF = pdf

	stored, err := o.stores.Letters.Insert(ctx, letter)
	if err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("store letter: %w", err)
	}
	if err := o.stores.Letters.AttachPDF(ctx, stored.ID, pdf); err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("attach pdf: %w", err)
	}
	stored.PDF = pdf
	return stored, nil
}

// collectFiles assembles the upload set: the user's CV, the rendered letter
// and any extra documents.
func (o *Orchestrator) collectFiles(ctx context.Context, userID int64, posting jobs.Posting, profile jobs.ApplyProfile, letter jobs.CoverLetter) ([]form.UploadFile, error) {
	var files []form.UploadFile

	cvs, err := o.stores.Documents.ListByKind(ctx, userID, form.SectionCV)
	if err != nil {
		return nil, fmt.Errorf("list cv documents: %w", err)
	}
	if len(cvs) > 0 {
		files = append(files, form.UploadFile{
			Kind:  form.SectionCV,
			Name:  letters.SanitizeFileName(cvs[0].Name),
			Bytes: cvs[0].Content,
		})
	}

	if len(letter.PDF) > 0 {
		files = append(files, form.UploadFile{
			Kind:  form.SectionMotivation,
			Name:  letters.PDFFileName(posting, profile),
			Bytes: letter.PDF,
		})
	}

	others, err := o.stores.Documents.ListByKind(ctx, userID, form.SectionOther)
	if err != nil {
		return nil, fmt.Errorf("list other documents: %w", err)
	}
	for _, doc := range others {
		files = append(files, form.UploadFile{
			Kind:  form.SectionOther,
			Name:  letters.SanitizeFileName(doc.Name),
			Bytes: doc.Content,
		})
	}
	return files, nil
}

// converge drives the check→fill→recheck loop up to the configured number
// of attempts. It returns Submitted, Expired or Failed plus a reason.
func (o *Orchestrator) converge(ctx context.Context, page browser.Page, posting jobs.Posting, profile jobs.ApplyProfile, files []form.UploadFile) (jobs.ApplicationStatus, string) {
	target := fmt.Sprintf("%s/%s/", o.cfg.ApplyURL, posting.ExternalID)

	for attempt := 1; attempt <= o.cfg.FillAttempts; attempt++ {
		o.log.Debug("convergence attempt",
			zap.String("external_id", posting.ExternalID),
			zap.Int("attempt", attempt))

		var scratch []string
		status, reason, done := o.attempt(ctx, page, target, posting, profile, files, &scratch)
		o.filler.CleanupFiles(scratch)
		if done {
			return status, reason
		}
	}
	return jobs.StatusFailed, fmt.Sprintf("form not converged after %d attempts", o.cfg.FillAttempts)
}

// attempt is one convergence pass. done is false only for a retryable miss.
func (o *Orchestrator) attempt(ctx context.Context, page browser.Page, target string, posting jobs.Posting, profile jobs.ApplyProfile, files []form.UploadFile, scratch *[]string) (jobs.ApplicationStatus, string, bool) {
	if err := page.Navigate(ctx, target); err != nil {
		o.log.Warn("application page load failed",
			zap.String("external_id", posting.ExternalID), zap.Error(err))
		return jobs.StatusFailed, fmt.Sprintf("navigate: %v", err), false
	}

	if o.checker.Expired(ctx, page) {
		return jobs.StatusExpired, "", true
	}
	if o.checker.AlreadySubmitted(ctx, page) {
		return jobs.StatusSubmitted, "", true
	}
	teaser, navbar := o.checker.NeedsLogin(ctx, page)
	if navbar {
		return jobs.StatusFailed, "session expired on application page", true
	}
	if teaser {
		o.filler.DismissLoginTeaser(ctx, page)
	}
	o.filler.AcceptCookies(ctx, page)

	missingFields, missingFiles := o.checker.VerifyAll(ctx, page, profile, files)
	if len(missingFiles) > 0 {
		paths, err := o.filler.UploadFiles(ctx, page, missingFiles)
		if err != nil {
			return jobs.StatusFailed, fmt.Sprintf("upload: %v", err), false
		}
		*scratch = append(*scratch, paths...)
	}
	if len(missingFields) > 0 {
		o.filler.FillFields(ctx, page, profile, missingFields)
	}
	o.checker.WaitForUploads(ctx, page, files, o.cfg.UploadWait)

	missingFields, missingFiles = o.checker.VerifyAll(ctx, page, profile, files)
	if len(missingFields) > 0 || len(missingFiles) > 0 {
		o.log.Debug("form not yet converged",
			zap.String("external_id", posting.ExternalID),
			zap.Strings("missing_fields", missingFields),
			zap.Int("missing_files", len(missingFiles)))
		return jobs.StatusFailed, "missing fields or files after fill", false
	}

	if err := o.filler.Submit(ctx, page, o.cfg.DirectApply); err != nil {
		return jobs.StatusFailed, fmt.Sprintf("submit: %v", err), false
	}
	return jobs.StatusSubmitted, "", true
}
