package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "jobup", cfg.Site.Name)
	require.Equal(t, "https://www.jobup.ch/fr/emplois/", cfg.Site.ListingURL)
	require.Equal(t, "https://www.jobup.ch/fr/application/create/", cfg.Site.ApplyURL)
	require.Equal(t, 5, cfg.Browser.MaxContexts)
	require.Equal(t, int32(8), cfg.DB.MaxConns)
	require.Equal(t, "http://localhost:11434", cfg.LLM.Host)
	require.Equal(t, 3, cfg.Apply.MaxConcurrent)
	require.Equal(t, int64(1), cfg.Scheduler.UserID)
	require.True(t, cfg.Logging.Development)

	require.Equal(t, 45*time.Second, cfg.NavTimeout())
	require.Equal(t, 5*time.Minute, cfg.LoginTimeout())
	require.Equal(t, time.Hour, cfg.SchedulerInterval())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	raw := `
server:
  port: 9090
browser:
  max_contexts: 2
scheduler:
  user_id: 12
  keywords:
    - golang
    - devops
  interval_seconds: 600
llm:
  model: mistral
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 2, cfg.Browser.MaxContexts)
	require.Equal(t, int64(12), cfg.Scheduler.UserID)
	require.Equal(t, []string{"golang", "devops"}, cfg.Scheduler.Keywords)
	require.Equal(t, 10*time.Minute, cfg.SchedulerInterval())
	require.Equal(t, "mistral", cfg.LLM.Model)
	// File values merge over defaults.
	require.Equal(t, "https://www.jobup.ch", cfg.Site.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:  ServerConfig{Port: 8080},
		Site:    SiteConfig{ListingURL: "https://example.test/jobs", ApplyURL: "https://example.test/apply"},
		Browser: BrowserConfig{MaxContexts: 3},
		Apply:   ApplyConfig{MaxConcurrent: 2, FillAttempts: 3},
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"no browser contexts", func(c *Config) { c.Browser.MaxContexts = 0 }},
		{"no concurrency", func(c *Config) { c.Apply.MaxConcurrent = 0 }},
		{"no fill attempts", func(c *Config) { c.Apply.FillAttempts = 0 }},
		{"missing listing url", func(c *Config) { c.Site.ListingURL = "" }},
		{"missing apply url", func(c *Config) { c.Site.ApplyURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
