// Package scanner paginates the listing surface and extracts candidate
// posting identifiers. Page failures are logged and yield zero candidates,
// never a failed run.
package scanner

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/metrics"
)

// Listing surface selectors, versioned with the target site.
const (
	resultItemSelector  = `div[data-cy="vacancy-serp-item"]`
	resultIDAttribute   = "data-entity-id"
	paginationSelector  = `div.d_flex.ai_center.gap_s4`
	resultsWaitTimeout  = 15 * time.Second
)

var digitPattern = regexp.MustCompile(`\d+`)

// Browser provides scan pages. Satisfied by *browser.Driver.
type Browser interface {
	AcquirePage(ctx context.Context) (browser.Page, func(), error)
}

// Scanner turns search parameters into a stream of candidate identifiers.
type Scanner struct {
	listingURL string
	driver     Browser
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New constructs a scanner for the given listing URL.
func New(listingURL string, driver Browser, m *metrics.Metrics, log *zap.Logger) *Scanner {
	return &Scanner{listingURL: listingURL, driver: driver, metrics: m, log: log}
}

// BuildURL constructs the deterministic query URL for a search page. Zero
// parameters are omitted; categories and regions repeat their key.
func (s *Scanner) BuildURL(params jobs.SearchParams, page int) string {
	q := url.Values{}
	if page > 0 {
		q.Add("page", strconv.Itoa(page))
	}
	if params.Term != "" {
		q.Add("term", params.Term)
	}
	if params.GradeMin > 0 {
		q.Add("employment-grade-min", strconv.Itoa(params.GradeMin))
	}
	if params.GradeMax > 0 {
		q.Add("employment-grade-max", strconv.Itoa(params.GradeMax))
	}
	if params.PublishedAge > 0 {
		q.Add("publication-date", strconv.Itoa(params.PublishedAge))
	}
	for _, cat := range params.Categories {
		q.Add("category", strconv.Itoa(cat))
	}
	for _, reg := range params.Regions {
		q.Add("region", strconv.Itoa(reg))
	}
	if len(q) == 0 {
		return s.listingURL
	}
	return s.listingURL + "?" + q.Encode()
}

// MaxPages probes the pagination summary once for a search. An absent
// summary means exactly one page; the result is the largest number found in
// any summary element.
func (s *Scanner) MaxPages(ctx context.Context, params jobs.SearchParams) (int, error) {
	page, release, err := s.driver.AcquirePage(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := page.Navigate(ctx, s.BuildURL(params, 1)); err != nil {
		return 0, fmt.Errorf("probe first page: %w", err)
	}
	texts, err := page.Texts(ctx, paginationSelector)
	if err != nil || len(texts) == 0 {
		s.log.Info("no pagination summary, assuming single page", zap.String("term", params.Term))
		return 1, nil
	}

	maxPage := 1
	for _, text := range texts {
		for _, token := range digitPattern.FindAllString(text, -1) {
			if n, err := strconv.Atoi(token); err == nil && n > maxPage {
				maxPage = n
			}
		}
	}
	return maxPage, nil
}

// Scan collects the candidate identifiers of one listing page. Malformed
// identifiers are dropped. A load or wait failure yields zero candidates.
func (s *Scanner) Scan(ctx context.Context, params jobs.SearchParams, pageNumber int) ([]jobs.CandidateID, error) {
	page, release, err := s.driver.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.scanOn(ctx, page, params, pageNumber)
}

func (s *Scanner) scanOn(ctx context.Context, page browser.Page, params jobs.SearchParams, pageNumber int) ([]jobs.CandidateID, error) {
	target := s.BuildURL(params, pageNumber)
	if err := page.Navigate(ctx, target); err != nil {
		s.log.Warn("listing page load failed",
			zap.Int("page", pageNumber), zap.String("url", target), zap.Error(err))
		s.metrics.ScanPages.WithLabelValues("failed").Inc()
		return nil, nil
	}
	if err := page.WaitVisible(ctx, resultItemSelector, resultsWaitTimeout); err != nil {
		s.log.Warn("results container never appeared",
			zap.Int("page", pageNumber), zap.Error(err))
		s.metrics.ScanPages.WithLabelValues("empty").Inc()
		return nil, nil
	}

	values, err := page.Attributes(ctx, resultItemSelector, resultIDAttribute)
	if err != nil {
		s.log.Warn("identifier extraction failed", zap.Int("page", pageNumber), zap.Error(err))
		s.metrics.ScanPages.WithLabelValues("failed").Inc()
		return nil, nil
	}

	candidates := make([]jobs.CandidateID, 0, len(values))
	for _, v := range values {
		id := jobs.CandidateID(v)
		if !id.Valid() {
			s.log.Debug("dropping malformed identifier", zap.String("token", v))
			continue
		}
		candidates = append(candidates, id)
	}
	s.metrics.ScanPages.WithLabelValues("ok").Inc()
	s.log.Debug("page scanned",
		zap.Int("page", pageNumber), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// ScanAll fans all pages of a search out concurrently, feeds every candidate
// into the queue and closes it once the last page is done.
func (s *Scanner) ScanAll(ctx context.Context, params jobs.SearchParams, queue *jobs.CandidateQueue) error {
	defer queue.Close()

	maxPage, err := s.MaxPages(ctx, params)
	if err != nil {
		return err
	}
	s.log.Info("scanning listing pages",
		zap.String("term", params.Term), zap.Int("pages", maxPage))

	g, gctx := errgroup.WithContext(ctx)
	for pageNumber := 1; pageNumber <= maxPage; pageNumber++ {
		g.Go(func() error {
			candidates, err := s.Scan(gctx, params, pageNumber)
			if err != nil {
				return err
			}
			for _, id := range candidates {
				if err := queue.Push(gctx, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
