// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	DB        DBConfig        `mapstructure:"db"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Apply     ApplyConfig     `mapstructure:"apply"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP endpoint.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SiteConfig identifies the target listing site.
type SiteConfig struct {
	Name       string `mapstructure:"name"`
	BaseURL    string `mapstructure:"base_url"`
	ListingURL string `mapstructure:"listing_url"`
	ApplyURL   string `mapstructure:"apply_url"`
}

// BrowserConfig governs the chromedp driver.
type BrowserConfig struct {
	MaxContexts     int    `mapstructure:"max_contexts"`
	UserAgent       string `mapstructure:"user_agent"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	LoginTimeoutSec int    `mapstructure:"login_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LLMConfig points at the local model server used for letter generation.
type LLMConfig struct {
	Host            string `mapstructure:"host"`
	Model           string `mapstructure:"model"`
	MaxRetries      int    `mapstructure:"max_retries"`
	BackoffMs       int    `mapstructure:"backoff_ms"`
	ProfileText     string `mapstructure:"profile_text"`
	ReferenceLetter string `mapstructure:"reference_letter"`
}

// ApplyConfig tunes the orchestrator.
type ApplyConfig struct {
	MaxConcurrent   int `mapstructure:"max_concurrent"`
	MaxApplications int `mapstructure:"max_applications"`
	FillAttempts    int `mapstructure:"fill_attempts"`
	UploadWaitSec   int `mapstructure:"upload_wait_seconds"`
}

// SchedulerConfig drives the keyword rotation loop.
type SchedulerConfig struct {
	UserID          int64    `mapstructure:"user_id"`
	Keywords        []string `mapstructure:"keywords"`
	IntervalSeconds int      `mapstructure:"interval_seconds"`
	GradeMin        int      `mapstructure:"grade_min"`
	GradeMax        int      `mapstructure:"grade_max"`
	PublishedAge    int      `mapstructure:"published_age"`
	Categories      []int    `mapstructure:"categories"`
	Regions         []int    `mapstructure:"regions"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.name", "jobup")
	v.SetDefault("site.base_url", "https://www.jobup.ch")
	v.SetDefault("site.listing_url", "https://www.jobup.ch/fr/emplois/")
	v.SetDefault("site.apply_url", "https://www.jobup.ch/fr/application/create/")
	v.SetDefault("browser.max_contexts", 5)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.login_timeout_seconds", 300)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("llm.host", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.1")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.backoff_ms", 2000)
	v.SetDefault("apply.max_concurrent", 3)
	v.SetDefault("apply.max_applications", 0)
	v.SetDefault("apply.fill_attempts", 3)
	v.SetDefault("apply.upload_wait_seconds", 30)
	v.SetDefault("scheduler.user_id", 1)
	v.SetDefault("scheduler.interval_seconds", 3600)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxContexts <= 0 {
		return fmt.Errorf("browser.max_contexts must be > 0")
	}
	if c.Apply.MaxConcurrent <= 0 {
		return fmt.Errorf("apply.max_concurrent must be > 0")
	}
	if c.Apply.FillAttempts <= 0 {
		return fmt.Errorf("apply.fill_attempts must be > 0")
	}
	if c.Site.ListingURL == "" || c.Site.ApplyURL == "" {
		return fmt.Errorf("site.listing_url and site.apply_url are required")
	}
	return nil
}

// NavTimeout returns the browser navigation budget as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// LoginTimeout returns the bounded interactive-login wait.
func (c Config) LoginTimeout() time.Duration {
	return time.Duration(c.Browser.LoginTimeoutSec) * time.Second
}

// SchedulerInterval returns the pause between rotation cycles.
func (c Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}
