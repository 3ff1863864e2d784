// Package scheduler drives the long-running discovery-and-apply loop over a
// rotating keyword list.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/apply"
	"github.com/lmeyrat/jobpilot/internal/fetcher"
	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/scanner"
)

// Config holds the rotation list and the static filter parameters merged
// into every cycle's search.
type Config struct {
	UserID   int64
	Keywords []string
	Interval time.Duration
	// Filters are merged with the cycle's keyword; Term is overwritten.
	Filters jobs.SearchParams
	// QueueCapacity sizes the candidate queue per cycle.
	QueueCapacity int
	// MaxApplications caps each pending run, zero means uncapped.
	MaxApplications int
	// MaxConcurrent bounds simultaneous applications.
	MaxConcurrent int
}

// Scheduler rotates through keywords, running one discovery cycle plus one
// pending-applications check per keyword. Stop is cooperative and observed
// at iteration boundaries only.
type Scheduler struct {
	cfg          Config
	scanner      *scanner.Scanner
	pool         *fetcher.Pool
	orchestrator *apply.Orchestrator
	log          *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	next    int
}

// New wires a scheduler.
func New(cfg Config, sc *scanner.Scanner, pool *fetcher.Pool, orch *apply.Orchestrator, log *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	return &Scheduler{cfg: cfg, scanner: sc, pool: pool, orchestrator: orch, log: log, stop: make(chan struct{})}
}

// nextKeyword returns the next rotation entry, wrapping after the last.
func (s *Scheduler) nextKeyword() string {
	if len(s.cfg.Keywords) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keyword := s.cfg.Keywords[s.next]
	s.next = (s.next + 1) % len(s.cfg.Keywords)
	return keyword
}

// Run loops until Stop is called or the context ends. The current cycle
// always finishes; callers needing a shutdown bound race Stop against a
// timeout.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("scheduler started",
		zap.Strings("keywords", s.cfg.Keywords),
		zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return nil
		case <-ctx.Done():
			s.log.Info("scheduler context ended")
			return ctx.Err()
		default:
		}

		s.cycle(ctx)

		select {
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// cycle runs one keyword's discovery plus the pending-applications check.
// Cycle failures are logged and do not stop the rotation.
func (s *Scheduler) cycle(ctx context.Context) {
	cycleID := uuid.New()
	keyword := s.nextKeyword()
	params := s.cfg.Filters
	params.Term = keyword
	log := s.log.With(zap.Stringer("cycle_id", cycleID))
	log.Info("discovery cycle", zap.String("keyword", keyword))

	queue := jobs.NewCandidateQueue(s.cfg.QueueCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.scanner.ScanAll(ctx, params, queue); err != nil {
			log.Error("listing scan failed", zap.String("keyword", keyword), zap.Error(err))
		}
	}()

	report, err := s.pool.Run(ctx, queue)
	wg.Wait()
	if err != nil {
		log.Error("detail fetch failed", zap.String("keyword", keyword), zap.Error(err))
		return
	}
	log.Info("discovery cycle finished",
		zap.String("keyword", keyword),
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	pending, err := s.orchestrator.CheckAndProcessPending(ctx, s.cfg.UserID, s.cfg.MaxApplications, s.cfg.MaxConcurrent)
	if err != nil {
		log.Error("pending applications run failed", zap.Error(err))
		return
	}
	log.Info("pending applications processed",
		zap.Int("pending", pending.Pending),
		zap.Int("successful", pending.Successful),
		zap.Int("failed", pending.Failed))
}

// Stop requests a cooperative stop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}
