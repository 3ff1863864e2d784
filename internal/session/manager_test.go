package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
)

func TestStateBlobRoundTrip(t *testing.T) {
	t.Parallel()

	state := &browser.State{
		Cookies: []browser.Cookie{
			{
				Name:     "session_token",
				Value:    "abc123",
				Domain:   ".example.test",
				Path:     "/",
				Expires:  1924992000,
				HTTPOnly: true,
				Secure:   true,
				SameSite: "Lax",
			},
			{Name: "locale", Value: "de-CH", Domain: ".example.test", Path: "/"},
		},
		LocalStorage: map[string]string{
			"consent":  "granted",
			"ui-theme": "dark",
		},
		SavedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := compressState(state)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := decompressState(data)
	require.NoError(t, err)
	require.Equal(t, state, restored)
}

func TestDecompressStateRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := decompressState([]byte("not gzip at all"))
	require.Error(t, err)
}

func TestCompressStateShrinksRepetitiveState(t *testing.T) {
	t.Parallel()

	state := &browser.State{LocalStorage: map[string]string{}}
	for i := 0; i < 50; i++ {
		state.Cookies = append(state.Cookies, browser.Cookie{
			Name:   "tracking_cookie",
			Value:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Domain: ".example.test",
			Path:   "/",
		})
	}

	data, err := compressState(state)
	require.NoError(t, err)

	restored, err := decompressState(data)
	require.NoError(t, err)
	require.Len(t, restored.Cookies, 50)
	// 50 identical cookies compress well below their JSON size.
	require.Less(t, len(data), 1000)
}

func TestIsAuthenticatedProbesMarker(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{BaseURL: "https://example.test"}, nil, nil, nil, zap.NewNop())

	require.False(t, m.IsAuthenticated(context.Background(), markerPage{visible: false}))
	require.True(t, m.IsAuthenticated(context.Background(), markerPage{visible: true}))
	require.False(t, m.IsAuthenticated(context.Background(), markerPage{err: errors.New("page gone")}))
}

// markerPage answers visibility probes with a fixed result.
type markerPage struct {
	visible bool
	err     error
}

var _ browser.Page = markerPage{}

func (p markerPage) Navigate(context.Context, string) error   { return nil }
func (p markerPage) Location(context.Context) (string, error) { return "", nil }
func (p markerPage) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}

func (p markerPage) IsVisible(context.Context, string) (bool, error) {
	return p.visible, p.err
}

func (p markerPage) Click(context.Context, string) error        { return nil }
func (p markerPage) Fill(context.Context, string, string) error { return nil }
func (p markerPage) InputValue(context.Context, string) (string, error) {
	return "", nil
}
func (p markerPage) Text(context.Context, string) (string, error)    { return "", nil }
func (p markerPage) Texts(context.Context, string) ([]string, error) { return nil, nil }
func (p markerPage) Attributes(context.Context, string, string) ([]string, error) {
	return nil, nil
}
func (p markerPage) Count(context.Context, string) (int, error)          { return 0, nil }
func (p markerPage) SetFiles(context.Context, string, []string) error    { return nil }
func (p markerPage) ContainsText(context.Context, string) (bool, error)  { return false, nil }
func (p markerPage) WaitNetworkIdle(context.Context, time.Duration) error { return nil }
