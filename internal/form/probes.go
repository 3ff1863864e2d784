package form

import (
	"context"

	"github.com/lmeyrat/jobpilot/internal/browser"
)

// Expired reports whether the application page shows the expired-vacancy
// marker.
func (c *Checker) Expired(ctx context.Context, page browser.Page) bool {
	visible, err := page.IsVisible(ctx, expiredVacancyMarker)
	return err == nil && visible
}

// AlreadySubmitted reports whether the page shows the confirmation of a
// previously sent application.
func (c *Checker) AlreadySubmitted(ctx context.Context, page browser.Page) bool {
	visible, err := page.IsVisible(ctx, alreadySubmittedImage)
	return err == nil && visible
}

// NeedsLogin reports whether a login control is present. The teaser variant
// only needs a click to reuse the cached session; the navbar variant means
// the session is gone.
func (c *Checker) NeedsLogin(ctx context.Context, page browser.Page) (teaser, navbar bool) {
	teaser, _ = page.IsVisible(ctx, loginTeaserButton)
	navbar, _ = page.IsVisible(ctx, loginNavbarButton)
	return teaser, navbar
}
