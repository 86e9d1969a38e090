package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lamim/taleforge/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Backend         BackendConfig   `toml:"backend"`
	Story           StoryConfig     `toml:"story"`
	Reveal          RevealConfig    `toml:"reveal"`
	Loading         LoadingConfig   `toml:"loading"`
	Storage         StorageConfig   `toml:"storage"`
	Metrics         MetricsConfig   `toml:"metrics"`
	Logging         LoggingConfig   `toml:"logging"`
	PromptTemplates PromptTemplates `toml:"prompt_templates"`
}

// BackendConfig describes the text-generation endpoint
type BackendConfig struct {
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	Temperature        float64 `toml:"temperature"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`       // HTTP request timeout (default 120)
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"` // Client-side request budget (default 30)
}

// StoryConfig holds pacing and prompt-size settings
type StoryConfig struct {
	MaxChapters      int   `toml:"max_chapters"`
	ScenesPerChapter int   `toml:"scenes_per_chapter"`
	CharTarget       int   `toml:"char_target"`     // Approximate scene length requested from the backend
	ContextEntries   int   `toml:"context_entries"` // History entries sent as continuation context
	EnforceFinale    *bool `toml:"enforce_finale"`  // Drop options returned for the final scene (default true)
}

// RevealConfig controls the typewriter reveal
type RevealConfig struct {
	IntervalMS int `toml:"interval_ms"` // Per-character delay
	FrameMS    int `toml:"frame_ms"`    // Scheduler tick
}

// LoadingConfig controls the rotating wait message
type LoadingConfig struct {
	IntervalMS int `toml:"interval_ms"`
}

// StorageConfig selects where session snapshots are saved
type StorageConfig struct {
	Driver        string `toml:"driver"` // file, memory, redis, sqlite, supabase
	Key           string `toml:"key"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	TTLHours      int    `toml:"ttl_hours"` // Redis only, 0 = no expiry
	SQLitePath    string `toml:"sqlite_path"`
	SupabaseURL   string `toml:"supabase_url"`
	SupabaseTable string `toml:"supabase_table"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Addr string `toml:"addr"` // Empty disables the listener
}

// LoggingConfig controls the structured log file
type LoggingConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"` // debug, info, warn, error
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	Opening      string `toml:"opening"`
	Continuation string `toml:"continuation"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKey        string `env:"TALEFORGE_API_KEY"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	RedisPassword string `env:"TALEFORGE_REDIS_PASSWORD"`
	SupabaseKey   string `env:"TALEFORGE_SUPABASE_KEY"`
}

// EnvOverrides lets deployment environments replace file settings
type EnvOverrides struct {
	BaseURL       string `env:"TALEFORGE_BASE_URL"`
	Model         string `env:"TALEFORGE_MODEL"`
	StorageDriver string `env:"TALEFORGE_STORAGE_DRIVER"`
	StorageDir    string `env:"TALEFORGE_STORAGE_DIR"`
	RedisAddr     string `env:"TALEFORGE_REDIS_ADDR"`
	SQLitePath    string `env:"TALEFORGE_SQLITE_PATH"`
	SupabaseURL   string `env:"TALEFORGE_SUPABASE_URL"`
	MetricsAddr   string `env:"TALEFORGE_METRICS_ADDR"`
}

// Storage drivers accepted in storage.driver
var validStorageDrivers = []string{"file", "memory", "redis", "sqlite", "supabase"}

const (
	// MaxChapters bounds story.max_chapters
	MaxChapters = 50
	// MaxScenesPerChapter bounds story.scenes_per_chapter
	MaxScenesPerChapter = 50
	// MaxCharTarget bounds story.char_target
	MaxCharTarget = 10000
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		return fmt.Errorf("backend.temperature must be between 0 and 2 (got %.2f)", c.Backend.Temperature)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must not be negative")
	}
	if c.Backend.RateLimitPerMinute < 1 {
		return fmt.Errorf("backend.rate_limit_per_minute must be at least 1")
	}

	if c.Story.MaxChapters < 1 || c.Story.MaxChapters > MaxChapters {
		return fmt.Errorf("story.max_chapters must be between 1 and %d (got %d)", MaxChapters, c.Story.MaxChapters)
	}
	if c.Story.ScenesPerChapter < 1 || c.Story.ScenesPerChapter > MaxScenesPerChapter {
		return fmt.Errorf("story.scenes_per_chapter must be between 1 and %d (got %d)", MaxScenesPerChapter, c.Story.ScenesPerChapter)
	}
	if c.Story.CharTarget < 1 || c.Story.CharTarget > MaxCharTarget {
		return fmt.Errorf("story.char_target must be between 1 and %d (got %d)", MaxCharTarget, c.Story.CharTarget)
	}
	if c.Story.ContextEntries < 1 {
		return fmt.Errorf("story.context_entries must be at least 1")
	}

	if c.Reveal.IntervalMS < 0 || c.Reveal.FrameMS < 1 {
		return fmt.Errorf("reveal.interval_ms must not be negative and reveal.frame_ms must be at least 1")
	}
	if c.Loading.IntervalMS < 1 {
		return fmt.Errorf("loading.interval_ms must be at least 1")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.PromptTemplates.Opening == "" {
		return fmt.Errorf("prompt_templates.opening is required")
	}
	if c.PromptTemplates.Continuation == "" {
		return fmt.Errorf("prompt_templates.continuation is required")
	}

	return nil
}

func (c *Config) validateStorage() error {
	valid := false
	for _, d := range validStorageDrivers {
		if c.Storage.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("storage.driver must be one of: file, memory, redis, sqlite, supabase (got %s)", c.Storage.Driver)
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("storage.key is required")
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file driver")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseTable == "" {
			return fmt.Errorf("storage.supabase_url and storage.supabase_table are required for the supabase driver")
		}
	}
	return nil
}

// Limits returns the progression bounds of a story
func (c *Config) Limits() models.Limits {
	return models.Limits{MaxChapters: c.Story.MaxChapters, ScenesPerChapter: c.Story.ScenesPerChapter}
}

// FinaleEnforced reports whether options are stripped from the final scene
func (c *Config) FinaleEnforced() bool {
	return c.Story.EnforceFinale == nil || *c.Story.EnforceFinale
}

// RequestTimeout returns the backend HTTP timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// RevealInterval returns the per-character reveal delay
func (c *Config) RevealInterval() time.Duration {
	return time.Duration(c.Reveal.IntervalMS) * time.Millisecond
}

// RevealFrame returns the reveal scheduler tick
func (c *Config) RevealFrame() time.Duration {
	return time.Duration(c.Reveal.FrameMS) * time.Millisecond
}

// LoadingInterval returns the wait-message rotation period
func (c *Config) LoadingInterval() time.Duration {
	return time.Duration(c.Loading.IntervalMS) * time.Millisecond
}

// StorageTTL returns the key expiry for drivers that support one
func (c *Config) StorageTTL() time.Duration {
	return time.Duration(c.Storage.TTLHours) * time.Hour
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets from environment: %w", err)
	}
	return &secrets, nil
}

// GetAPIKey returns the backend credential, preferring the application-specific variable
func (s *Secrets) GetAPIKey() string {
	if s.APIKey != "" {
		return s.APIKey
	}
	return s.GeminiAPIKey
}

// applyEnvOverrides replaces file settings with any TALEFORGE_* variables that are set
func applyEnvOverrides(cfg *Config) error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	overrides := []struct {
		value  string
		target *string
	}{
		{o.BaseURL, &cfg.Backend.BaseURL},
		{o.Model, &cfg.Backend.Model},
		{o.StorageDriver, &cfg.Storage.Driver},
		{o.StorageDir, &cfg.Storage.Dir},
		{o.RedisAddr, &cfg.Storage.RedisAddr},
		{o.SQLitePath, &cfg.Storage.SQLitePath},
		{o.SupabaseURL, &cfg.Storage.SupabaseURL},
		{o.MetricsAddr, &cfg.Metrics.Addr},
	}
	for _, ov := range overrides {
		if ov.value != "" {
			*ov.target = ov.value
		}
	}
	return nil
}
