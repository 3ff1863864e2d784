// Package browser wraps chromedp behind the small driving surface the
// pipeline needs: navigation, element queries, form input and storage-state
// export/import.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config controls the behavior of the driver.
type Config struct {
	MaxContexts int
	UserAgent   string
	NavTimeout  time.Duration
	// ContextsGauge, when set, tracks the number of open contexts.
	ContextsGauge prometheus.Gauge
}

// Driver owns the chromedp exec allocators and a counting semaphore of
// browser slots. Every acquired context maps to one OS browser process, so
// the semaphore is the hard bound on simultaneous browsers.
type Driver struct {
	cfg            Config
	limiter        chan struct{}
	headless       context.Context
	headlessCancel context.CancelFunc
	headful        context.Context
	headfulCancel  context.CancelFunc
	logger         *zap.Logger
}

// NewDriver creates a Driver with the given slot budget.
func NewDriver(cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.MaxContexts <= 0 {
		return nil, fmt.Errorf("max contexts must be > 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}

	base := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
	)
	if cfg.UserAgent != "" {
		base = append(base, chromedp.UserAgent(cfg.UserAgent))
	}

	headlessOpts := append(append([]chromedp.ExecAllocatorOption(nil), base...),
		chromedp.Flag("headless", "new"),
	)
	headfulOpts := append(append([]chromedp.ExecAllocatorOption(nil), base...),
		chromedp.Flag("headless", false),
	)

	headlessCtx, headlessCancel := chromedp.NewExecAllocator(context.Background(), headlessOpts...)
	headfulCtx, headfulCancel := chromedp.NewExecAllocator(context.Background(), headfulOpts...)

	return &Driver{
		cfg:            cfg,
		limiter:        make(chan struct{}, cfg.MaxContexts),
		headless:       headlessCtx,
		headlessCancel: headlessCancel,
		headful:        headfulCtx,
		headfulCancel:  headfulCancel,
		logger:         logger,
	}, nil
}

// Close cancels both allocator contexts.
func (d *Driver) Close() {
	d.headfulCancel()
	d.headlessCancel()
}

// ContextOptions selects how a browsing context is opened. Interactive
// logins run headful so a human can complete the form.
type ContextOptions struct {
	Headful bool
}

// Context is one acquired browsing context. Callers must Close it to
// release the browser process and its slot.
type Context struct {
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	page    *chromedpPage
}

// Acquire blocks for a browser slot and opens a fresh context.
func (d *Driver) Acquire(ctx context.Context, opts ContextOptions) (*Context, error) {
	select {
	case d.limiter <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}

	allocator := d.headless
	if opts.Headful {
		allocator = d.headful
	}
	taskCtx, taskCancel := chromedp.NewContext(allocator)
	if d.cfg.ContextsGauge != nil {
		d.cfg.ContextsGauge.Inc()
	}

	bc := &Context{
		ctx:    taskCtx,
		cancel: taskCancel,
		release: func() {
			if d.cfg.ContextsGauge != nil {
				d.cfg.ContextsGauge.Dec()
			}
			select {
			case <-d.limiter:
			default:
			}
		},
	}
	bc.page = &chromedpPage{ctx: taskCtx, navTimeout: d.cfg.NavTimeout}
	return bc, nil
}

// AcquirePage is the common case of Acquire: a headless context exposed as
// its page plus a release func.
func (d *Driver) AcquirePage(ctx context.Context) (Page, func(), error) {
	bc, err := d.Acquire(ctx, ContextOptions{})
	if err != nil {
		return nil, nil, err
	}
	return bc.page, bc.Close, nil
}

// Page returns the page bound to this context.
func (c *Context) Page() Page {
	return c.page
}

// Close tears down the browser process and frees its slot. Safe to call
// more than once.
func (c *Context) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.release != nil {
		c.release()
		c.release = nil
	}
}
