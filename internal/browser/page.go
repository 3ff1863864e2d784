package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
)

// Page is the driving surface the scanner, fetcher and form engine operate
// on. Implementations must treat an absent element as a normal outcome, not
// an error, so per-field optionality stays cheap for callers.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	IsVisible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	InputValue(ctx context.Context, selector string) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Attributes(ctx context.Context, selector, attribute string) ([]string, error)
	Count(ctx context.Context, selector string) (int, error)
	SetFiles(ctx context.Context, selector string, paths []string) error
	ContainsText(ctx context.Context, text string) (bool, error)
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
}

// chromedpPage implements Page on a chromedp task context.
type chromedpPage struct {
	ctx        context.Context
	navTimeout time.Duration
}

func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// forwardCancel cancels the chromedp run when the caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

const visibleExpr = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const s = window.getComputedStyle(el);
	return s.display !== 'none' && s.visibility !== 'hidden' && el.offsetParent !== null;
})()`

func (p *chromedpPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	expr := fmt.Sprintf(visibleExpr, strconv.Quote(selector))
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(expr, &visible)); err != nil {
		return false, fmt.Errorf("visibility probe %s: %w", selector, err)
	}
	return visible, nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 10*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, 10*time.Second,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) InputValue(ctx context.Context, selector string) (string, error) {
	var value string
	if err := p.run(ctx, 5*time.Second, chromedp.Value(selector, &value, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read value %s: %w", selector, err)
	}
	return value, nil
}

func (p *chromedpPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, 5*time.Second,
		chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.AtLeast(0)),
	)
	if err != nil {
		return "", fmt.Errorf("read text %s: %w", selector, err)
	}
	return text, nil
}

const textsExpr = `Array.from(document.querySelectorAll(%s)).map(el => el.innerText)`

func (p *chromedpPage) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	expr := fmt.Sprintf(textsExpr, strconv.Quote(selector))
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(expr, &texts)); err != nil {
		return nil, fmt.Errorf("read texts %s: %w", selector, err)
	}
	return texts, nil
}

const attributesExpr = `Array.from(document.querySelectorAll(%s)).map(el => el.getAttribute(%s) || '')`

func (p *chromedpPage) Attributes(ctx context.Context, selector, attribute string) ([]string, error) {
	var values []string
	expr := fmt.Sprintf(attributesExpr, strconv.Quote(selector), strconv.Quote(attribute))
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(expr, &values)); err != nil {
		return nil, fmt.Errorf("read attributes %s: %w", selector, err)
	}
	return values, nil
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(selector))
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return count, nil
}

func (p *chromedpPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	err := p.run(ctx, 15*time.Second,
		chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("set files %s: %w", selector, err)
	}
	return nil
}

const containsExpr = `document.body.innerText.includes(%s)`

func (p *chromedpPage) ContainsText(ctx context.Context, text string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(containsExpr, strconv.Quote(text))
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("text probe: %w", err)
	}
	return found, nil
}

const resourceCountExpr = `window.performance.getEntriesByType('resource').length`

// WaitNetworkIdle approximates network idle by polling the resource-timing
// count until it stays unchanged for a quiet window or the timeout passes.
func (p *chromedpPage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	const quiet = 500 * time.Millisecond
	deadline := time.Now().Add(timeout)

	last := -1
	stableSince := time.Now()
	for time.Now().Before(deadline) {
		var count int
		if err := p.run(ctx, 2*time.Second, chromedp.Evaluate(resourceCountExpr, &count)); err != nil {
			return fmt.Errorf("network idle probe: %w", err)
		}
		if count == last {
			if time.Since(stableSince) >= quiet {
				return nil
			}
		} else {
			last = count
			stableSince = time.Now()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("network idle wait timed out after %s", timeout)
}
