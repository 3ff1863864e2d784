package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// State is the serializable browsing-session snapshot: cookies plus the
// localStorage of the target origin.
type State struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"local_storage"`
	SavedAt      time.Time         `json:"saved_at"`
}

// Cookie is one browser cookie in a transport-friendly shape.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// ExportState captures the context's cookies and localStorage.
func (c *Context) ExportState(ctx context.Context) (*State, error) {
	state := &State{LocalStorage: map[string]string{}}

	var raw string
	err := c.page.run(ctx, 10*time.Second,
		chromedp.ActionFunc(func(runCtx context.Context) error {
			cookies, err := storage.GetCookies().Do(runCtx)
			if err != nil {
				return fmt.Errorf("get cookies: %w", err)
			}
			for _, ck := range cookies {
				state.Cookies = append(state.Cookies, Cookie{
					Name:     ck.Name,
					Value:    ck.Value,
					Domain:   ck.Domain,
					Path:     ck.Path,
					Expires:  ck.Expires,
					HTTPOnly: ck.HTTPOnly,
					Secure:   ck.Secure,
					SameSite: ck.SameSite.String(),
				})
			}
			return nil
		}),
		chromedp.Evaluate(`JSON.stringify(Object.assign({}, window.localStorage))`, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.LocalStorage); err != nil {
			return nil, fmt.Errorf("decode local storage: %w", err)
		}
	}
	return state, nil
}

// ImportCookies restores the snapshot's cookies into the context. Cookies
// can be set before any navigation.
func (c *Context) ImportCookies(ctx context.Context, state *State) error {
	if state == nil || len(state.Cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, ck := range state.Cookies {
		param := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
		}
		if ck.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}

	err := c.page.run(ctx, 10*time.Second,
		chromedp.ActionFunc(func(runCtx context.Context) error {
			return storage.SetCookies(params).Do(runCtx)
		}),
	)
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// ImportLocalStorage writes the snapshot's localStorage entries. The page
// must already be at the target origin or the write lands on the wrong one.
func (c *Context) ImportLocalStorage(ctx context.Context, state *State) error {
	if state == nil || len(state.LocalStorage) == 0 {
		return nil
	}
	encoded, err := json.Marshal(state.LocalStorage)
	if err != nil {
		return fmt.Errorf("encode local storage: %w", err)
	}
	expr := fmt.Sprintf(
		`(() => { const entries = %s; for (const [k, v] of Object.entries(entries)) { window.localStorage.setItem(k, v); } return true; })()`,
		string(encoded),
	)
	var ok bool
	if err := c.page.run(ctx, 10*time.Second, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("import local storage: %w", err)
	}
	return nil
}
