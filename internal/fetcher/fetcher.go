// Package fetcher resolves candidate identifiers into stored postings with a
// bounded worker pool.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/metrics"
)

// Detail page selectors, versioned with the target site.
const (
	titleSelector       = `[data-cy="vacancy-title"]`
	companySelector     = `[data-cy="vacancy-logo"]`
	descriptionSelector = `[data-cy="vacancy-description"]`
	publicationSelector = `[data-cy="info-publication"]`
	workloadSelector    = `[data-cy="info-workload"]`
	contractSelector    = `[data-cy="info-contract"]`
	locationSelector    = `[data-cy="info-location-link"]`
	companyInfoSelector = `[data-cy="vacancy-lead"] p`
	companyURLSelector  = `[data-cy="company-url"]`
	categoriesSelector  = `[data-cy="vacancy-meta"] a`
	quickApplySelector  = `[data-cy="quick-apply"]`

	detailWaitTimeout = 10 * time.Second
)

// Outcome classifies the handling of one candidate.
type Outcome string

// Per-candidate outcomes aggregated into a ScanReport.
const (
	OutcomeStored  Outcome = "stored"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ScanReport aggregates one discovery run.
type ScanReport struct {
	Stored  int
	Skipped int
	Failed  int
}

// Browser provides detail pages. Satisfied by *browser.Driver.
type Browser interface {
	AcquirePage(ctx context.Context) (browser.Page, func(), error)
}

// Config bounds the pool and points it at the detail surface.
type Config struct {
	// DetailURL is the listing endpoint; the candidate id is appended as the
	// jobid query parameter.
	DetailURL string
	// Workers bounds simultaneous browser navigations.
	Workers int
}

// Pool consumes the candidate queue and persists postings.
type Pool struct {
	cfg      Config
	driver   Browser
	postings jobs.PostingStore
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewPool wires a detail fetcher pool.
func NewPool(cfg Config, driver Browser, postings jobs.PostingStore, m *metrics.Metrics, log *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	return &Pool{cfg: cfg, driver: driver, postings: postings, metrics: m, log: log}
}

// Run drains the queue with the configured number of workers and returns the
// aggregated report once the queue is closed and empty.
func (p *Pool) Run(ctx context.Context, queue *jobs.CandidateQueue) (ScanReport, error) {
	var (
		mu     sync.Mutex
		report ScanReport
		wg     sync.WaitGroup
	)

	record := func(outcome Outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case OutcomeStored:
			report.Stored++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				id, ok, err := queue.Next(ctx)
				if err != nil || !ok {
					return
				}
				outcome := p.fetchOne(ctx, id)
				record(outcome)
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("fetch pool interrupted: %w", err)
	}
	p.log.Info("discovery finished",
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// fetchOne resolves a single candidate. The dedup check runs before any
// browser work so known postings cost one store lookup, not a navigation.
func (p *Pool) fetchOne(ctx context.Context, id jobs.CandidateID) Outcome {
	_, err := p.postings.GetByExternalID(ctx, string(id))
	if err == nil {
		p.metrics.PostingsSkipped.Inc()
		return OutcomeSkipped
	}
	if !errors.Is(err, jobs.ErrNotFound) {
		p.log.Error("dedup lookup failed", zap.String("external_id", string(id)), zap.Error(err))
		return OutcomeFailed
	}

	page, release, err := p.driver.AcquirePage(ctx)
	if err != nil {
		p.log.Error("browser slot acquisition failed", zap.Error(err))
		return OutcomeFailed
	}
	defer release()

	posting, err := p.extract(ctx, page, id)
	if err != nil {
		p.log.Warn("detail extraction failed", zap.String("external_id", string(id)), zap.Error(err))
		return OutcomeFailed
	}

	stored, created, err := p.postings.Insert(ctx, posting)
	if err != nil {
		p.log.Error("posting insert failed", zap.String("external_id", string(id)), zap.Error(err))
		return OutcomeFailed
	}
	if !created {
		// Another fetcher raced us to the insert.
		p.metrics.PostingsSkipped.Inc()
		return OutcomeSkipped
	}
	p.metrics.PostingsDiscovered.Inc()
	p.log.Debug("posting stored",
		zap.String("external_id", stored.ExternalID),
		zap.String("title", stored.Title),
		zap.Bool("quick_apply", stored.QuickApply))
	return OutcomeStored
}

// extract pulls every field independently: a missing element leaves its
// field empty and never blocks the others. Title and description are the
// only fields required for a usable posting.
func (p *Pool) extract(ctx context.Context, page browser.Page, id jobs.CandidateID) (jobs.Posting, error) {
	detailURL := fmt.Sprintf("%s?jobid=%s", p.cfg.DetailURL, id)
	if err := page.Navigate(ctx, detailURL); err != nil {
		return jobs.Posting{}, fmt.Errorf("navigate detail: %w", err)
	}
	if err := page.WaitVisible(ctx, titleSelector, detailWaitTimeout); err != nil {
		p.log.Debug("title never appeared, extracting anyway", zap.String("external_id", string(id)))
	}

	posting := jobs.Posting{
		ExternalID: string(id),
		Link:       detailURL,
		QuickApply: p.detectQuickApply(ctx, page),
		CreatedAt:  time.Now().UTC(),
	}
	posting.Title = p.fieldText(ctx, page, titleSelector)
	posting.Company = p.fieldText(ctx, page, companySelector)
	posting.PostedDate = p.fieldText(ctx, page, publicationSelector)
	posting.Workload = p.fieldText(ctx, page, workloadSelector)
	posting.Contract = p.fieldText(ctx, page, contractSelector)
	posting.Location = cleanLocation(p.fieldText(ctx, page, locationSelector))
	posting.CompanyInfo = p.fieldText(ctx, page, companyInfoSelector)
	posting.CompanyURL = p.fieldAttribute(ctx, page, companyURLSelector, "href")
	posting.Categories = p.fieldJoined(ctx, page, categoriesSelector)

	posting.Description = p.fieldText(ctx, page, descriptionSelector)
	if strings.TrimSpace(posting.Description) == "" {
		posting.Description = p.largestTextBlock(ctx, page)
	}
	if strings.TrimSpace(posting.Description) == "" {
		return jobs.Posting{}, fmt.Errorf("no description extracted for %s", id)
	}
	return posting, nil
}

func (p *Pool) fieldText(ctx context.Context, page browser.Page, selector string) string {
	text, err := page.Text(ctx, selector)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (p *Pool) fieldAttribute(ctx context.Context, page browser.Page, selector, attribute string) string {
	values, err := page.Attributes(ctx, selector, attribute)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (p *Pool) fieldJoined(ctx context.Context, page browser.Page, selector string) string {
	texts, err := page.Texts(ctx, selector)
	if err != nil {
		return ""
	}
	kept := texts[:0]
	for _, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

// detectQuickApply is structural: the capability marker must be present in
// the DOM, it is never inferred from text.
func (p *Pool) detectQuickApply(ctx context.Context, page browser.Page) bool {
	n, err := page.Count(ctx, quickApplySelector)
	return err == nil && n > 0
}

// largestTextBlock is the description fallback: the longest visible text
// among the main content containers.
func (p *Pool) largestTextBlock(ctx context.Context, page browser.Page) string {
	best := ""
	for _, selector := range []string{"main", "article", ".content"} {
		text, err := page.Text(ctx, selector)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(text); len(t) > len(best) {
			best = t
		}
	}
	return best
}

// cleanLocation strips the "Location:" style prefix some detail pages carry.
func cleanLocation(location string) string {
	if idx := strings.LastIndex(location, ":"); idx >= 0 &&
		(strings.Contains(location, "Location") || strings.Contains(location, "Place")) {
		return strings.TrimSpace(location[idx+1:])
	}
	return location
}
