package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/lamim/taleforge/pkg/models"
)

// DefaultStorageKey is the versioned key snapshots are saved under
const DefaultStorageKey = "story_app_save_v1"

// Load reads and parses the configuration file and environment variables.
// An empty path or a missing file yields the defaults.
func Load(configPath string) (*Config, *Secrets, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Fall through to defaults
		case err != nil:
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Backend defaults
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Backend.Model == "" {
		cfg.Backend.Model = "gemini-2.5-flash"
	}
	if cfg.Backend.Temperature == 0 {
		cfg.Backend.Temperature = 0.9
	}
	if cfg.Backend.TimeoutSeconds == 0 {
		cfg.Backend.TimeoutSeconds = 120
	}
	if cfg.Backend.RateLimitPerMinute == 0 {
		cfg.Backend.RateLimitPerMinute = 30
	}

	// Story defaults
	if cfg.Story.MaxChapters == 0 {
		cfg.Story.MaxChapters = models.DefaultMaxChapters
	}
	if cfg.Story.ScenesPerChapter == 0 {
		cfg.Story.ScenesPerChapter = models.DefaultScenesPerChapter
	}
	if cfg.Story.CharTarget == 0 {
		cfg.Story.CharTarget = 700
	}
	if cfg.Story.ContextEntries == 0 {
		cfg.Story.ContextEntries = 3
	}
	if cfg.Story.EnforceFinale == nil {
		enforce := true
		cfg.Story.EnforceFinale = &enforce
	}

	// Timing defaults
	if cfg.Reveal.IntervalMS == 0 {
		cfg.Reveal.IntervalMS = 30
	}
	if cfg.Reveal.FrameMS == 0 {
		cfg.Reveal.FrameMS = 16
	}
	if cfg.Loading.IntervalMS == 0 {
		cfg.Loading.IntervalMS = 2000
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = DefaultStorageKey
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = defaultDataDir()
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.Dir, "taleforge.db")
	}
	if cfg.Storage.SupabaseTable == "" {
		cfg.Storage.SupabaseTable = "story_saves"
	}

	// Logging defaults
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.Storage.Dir, "taleforge.log")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Apply default templates if not provided
	if cfg.PromptTemplates.Opening == "" {
		cfg.PromptTemplates.Opening = GetDefaultOpeningTemplate()
	}
	if cfg.PromptTemplates.Continuation == "" {
		cfg.PromptTemplates.Continuation = GetDefaultContinuationTemplate()
	}
}

// defaultDataDir returns the per-user data directory for saves and logs
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "taleforge")
	}
	return ".taleforge"
}
