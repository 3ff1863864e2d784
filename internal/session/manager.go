package session

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// ErrLoginTimeout is returned when an interactive login does not complete
// within the configured wait.
var ErrLoginTimeout = errors.New("login wait timed out")

// loggedInMarker is visible only after authentication.
const loggedInMarker = `div[data-cy="offcanvas-menu-trigger"]`

// loginProbeInterval paces the wait for the logged-in marker during an
// interactive login.
const loginProbeInterval = 2 * time.Second

// Config carries the site endpoints and login bounds for the manager.
type Config struct {
	BaseURL      string
	LoginTimeout time.Duration
}

// Manager restores and persists browsing sessions. A session is stored as a
// single gzip-compressed blob per user and always overwritten wholesale.
type Manager struct {
	cfg    Config
	driver *browser.Driver
	store  jobs.SessionStore
	clock  jobs.Clock
	log    *zap.Logger

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

// NewManager wires a session manager.
func NewManager(cfg Config, driver *browser.Driver, store jobs.SessionStore, clock jobs.Clock, log *zap.Logger) *Manager {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 5 * time.Minute
	}
	return &Manager{
		cfg:    cfg,
		driver: driver,
		store:  store,
		clock:  clock,
		log:    log,
		users:  make(map[int64]*sync.Mutex),
	}
}

func (m *Manager) userLock(userID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.users[userID] = lock
	}
	return lock
}

// AcquireContext opens a browser context seeded with the user's newest
// session blob. When no blob exists the context comes back unauthenticated;
// callers decide whether to trigger a login.
func (m *Manager) AcquireContext(ctx context.Context, userID int64) (*browser.Context, error) {
	bctx, err := m.driver.Acquire(ctx, browser.ContextOptions{})
	if err != nil {
		return nil, err
	}

	blob, err := m.store.Load(ctx, userID)
	if errors.Is(err, jobs.ErrNotFound) {
		m.log.Info("no cached session, starting unauthenticated", zap.Int64("user_id", userID))
		return bctx, nil
	}
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("load session blob: %w", err)
	}

	state, err := decompressState(blob.Data)
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("decode session blob: %w", err)
	}
	if err := bctx.ImportCookies(ctx, state); err != nil {
		bctx.Close()
		return nil, err
	}
	if len(state.LocalStorage) > 0 {
		if err := bctx.Page().Navigate(ctx, m.cfg.BaseURL); err != nil {
			bctx.Close()
			return nil, fmt.Errorf("navigate for local storage restore: %w", err)
		}
		if err := bctx.ImportLocalStorage(ctx, state); err != nil {
			bctx.Close()
			return nil, err
		}
	}
	m.log.Debug("session restored",
		zap.Int64("user_id", userID),
		zap.Int("cookies", len(state.Cookies)),
		zap.Time("saved_at", blob.LastUpdated))
	return bctx, nil
}

// AcquirePage restores a session and hands back just the page plus a
// release func. The release also persists the (possibly refreshed) session
// before closing the context.
func (m *Manager) AcquirePage(ctx context.Context, userID int64) (browser.Page, func(), error) {
	bctx, err := m.AcquireContext(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := m.Persist(ctx, userID, bctx); err != nil {
			m.log.Warn("persist session on release", zap.Int64("user_id", userID), zap.Error(err))
		}
		bctx.Close()
	}
	return bctx.Page(), release, nil
}

// Persist exports the context's browsing state and overwrites the user's
// stored blob. Concurrent persists for the same user serialize; the last
// writer wins.
func (m *Manager) Persist(ctx context.Context, userID int64, bctx *browser.Context) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := bctx.ExportState(ctx)
	if err != nil {
		return err
	}
	state.SavedAt = m.clock.Now()

	data, err := compressState(state)
	if err != nil {
		return err
	}
	blob := jobs.SessionBlob{
		UserID:      userID,
		Data:        data,
		LastUpdated: state.SavedAt,
	}
	if err := m.store.Save(ctx, blob); err != nil {
		return fmt.Errorf("save session blob: %w", err)
	}
	m.log.Debug("session persisted",
		zap.Int64("user_id", userID),
		zap.Int("compressed_bytes", len(data)))
	return nil
}

// IsAuthenticated probes the logged-in DOM marker on the current page.
func (m *Manager) IsAuthenticated(ctx context.Context, page browser.Page) bool {
	visible, err := page.IsVisible(ctx, loggedInMarker)
	if err != nil {
		return false
	}
	return visible
}

// Login opens a headful context and waits for a human to complete the login
// form, bounded by the configured timeout. On success the fresh session is
// persisted before the context closes.
func (m *Manager) Login(ctx context.Context, userID int64) error {
	bctx, err := m.driver.Acquire(ctx, browser.ContextOptions{Headful: true})
	if err != nil {
		return err
	}
	defer bctx.Close()

	page := bctx.Page()
	if err := page.Navigate(ctx, m.cfg.BaseURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	m.log.Info("waiting for interactive login",
		zap.Int64("user_id", userID),
		zap.Duration("timeout", m.cfg.LoginTimeout))

	deadline := m.clock.Now().Add(m.cfg.LoginTimeout)
	for {
		if m.IsAuthenticated(ctx, page) {
			break
		}
		if m.clock.Now().After(deadline) {
			return ErrLoginTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(loginProbeInterval):
		}
	}

	if err := m.Persist(ctx, userID, bctx); err != nil {
		return err
	}
	m.log.Info("login complete, session cached", zap.Int64("user_id", userID))
	return nil
}

func compressState(state *browser.State) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress state: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressState(data []byte) (*browser.State, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open compressed state: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read compressed state: %w", err)
	}
	var state browser.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}
