// Command jobpilot runs the discovery-and-apply pipeline: the keyword
// rotation scheduler plus the operational HTTP endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/api"
	"github.com/lmeyrat/jobpilot/internal/apply"
	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/clock/system"
	"github.com/lmeyrat/jobpilot/internal/config"
	"github.com/lmeyrat/jobpilot/internal/fetcher"
	"github.com/lmeyrat/jobpilot/internal/form"
	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/letters"
	"github.com/lmeyrat/jobpilot/internal/llm"
	"github.com/lmeyrat/jobpilot/internal/logging"
	"github.com/lmeyrat/jobpilot/internal/metrics"
	"github.com/lmeyrat/jobpilot/internal/scanner"
	"github.com/lmeyrat/jobpilot/internal/scheduler"
	"github.com/lmeyrat/jobpilot/internal/session"
	"github.com/lmeyrat/jobpilot/internal/storage/postgres"
)

const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "jobpilot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := postgres.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer stores.Close()

	m := metrics.New()
	clock := system.Clock{}

	driver, err := browser.NewDriver(browser.Config{
		MaxContexts:   cfg.Browser.MaxContexts,
		UserAgent:     cfg.Browser.UserAgent,
		NavTimeout:    cfg.NavTimeout(),
		ContextsGauge: m.BrowserContexts,
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser driver: %w", err)
	}
	defer driver.Close()

	sessions := session.NewManager(session.Config{
		BaseURL:      cfg.Site.BaseURL,
		LoginTimeout: cfg.LoginTimeout(),
	}, driver, stores.Sessions, clock, logger.Named("session"))

	generator := letters.NewGenerator(llm.New(cfg.LLM.Host), letters.Config{
		Model:           cfg.LLM.Model,
		ProfileText:     cfg.LLM.ProfileText,
		ReferenceLetter: cfg.LLM.ReferenceLetter,
		MaxRetries:      cfg.LLM.MaxRetries,
		Backoff:         time.Duration(cfg.LLM.BackoffMs) * time.Millisecond,
	}, logger.Named("letters"))
	renderer := letters.NewRenderer(clock)

	sc := scanner.New(cfg.Site.ListingURL, driver, m, logger.Named("scanner"))
	pool := fetcher.NewPool(fetcher.Config{
		DetailURL: cfg.Site.ListingURL,
		Workers:   cfg.Browser.MaxContexts,
	}, driver, stores.Postings, m, logger.Named("fetcher"))

	orchestrator := apply.New(
		apply.Config{
			ApplyURL:     strings.TrimSuffix(cfg.Site.ApplyURL, "/"),
			SiteName:     cfg.Site.Name,
			FillAttempts: cfg.Apply.FillAttempts,
			UploadWait:   time.Duration(cfg.Apply.UploadWaitSec) * time.Second,
			DirectApply:  true,
		},
		apply.Stores{
			Postings:     stores.Postings,
			Applications: stores.Applications,
			Profiles:     stores.Profiles,
			Letters:      stores.Letters,
			Documents:    stores.Documents,
		},
		sessions,
		generator,
		renderer,
		form.NewChecker(logger.Named("form")),
		form.NewFiller(logger.Named("form")),
		m, clock, logger.Named("apply"),
	)

	sched := scheduler.New(scheduler.Config{
		UserID:   cfg.Scheduler.UserID,
		Keywords: cfg.Scheduler.Keywords,
		Interval: cfg.SchedulerInterval(),
		Filters: jobs.SearchParams{
			GradeMin:     cfg.Scheduler.GradeMin,
			GradeMax:     cfg.Scheduler.GradeMax,
			PublishedAge: cfg.Scheduler.PublishedAge,
			Categories:   cfg.Scheduler.Categories,
			Regions:      cfg.Scheduler.Regions,
		},
		MaxApplications: cfg.Apply.MaxApplications,
		MaxConcurrent:   cfg.Apply.MaxConcurrent,
	}, sc, pool, orchestrator, logger.Named("scheduler"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewServer(orchestrator, m, logger.Named("api")).Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		shutdown(srv, sched, logger)
		return err
	}

	shutdown(srv, sched, logger)
	return nil
}

// shutdown races the scheduler's cooperative stop against a grace period;
// a still-running cycle is allowed to finish in the background.
func shutdown(srv *http.Server, sched *scheduler.Scheduler, logger *zap.Logger) {
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
