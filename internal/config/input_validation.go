package config

import (
	"fmt"
	"net/url"
	"unicode"

	"github.com/lamim/taleforge/internal/util"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxStorageKeyLength is the maximum allowed length for the snapshot key
	MaxStorageKeyLength = 200
)

// ValidateInputs performs additional security validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	if err := validateModelName(c.Backend.Model); err != nil {
		return err
	}

	if err := validateURL(c.Backend.BaseURL, "backend.base_url"); err != nil {
		return err
	}
	if c.Storage.Driver == "supabase" {
		if err := validateURL(c.Storage.SupabaseURL, "storage.supabase_url"); err != nil {
			return err
		}
	}

	if len(c.Storage.Key) > MaxStorageKeyLength || containsControlChars(c.Storage.Key) {
		return fmt.Errorf("storage.key must be at most %d printable characters", MaxStorageKeyLength)
	}

	if err := c.validateTemplates(); err != nil {
		return err
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("backend.model exceeds maximum length of %d (got %d)",
			MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("backend.model contains invalid control characters")
	}

	return nil
}

// validateURL checks that a URL is properly formatted and safe
func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme (got %s)", field, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%s must have a host", field)
	}

	return nil
}

// validateTemplates checks template sizes and syntax before the first request needs them
func (c *Config) validateTemplates() error {
	templates := []struct {
		name  string
		value string
	}{
		{"opening", c.PromptTemplates.Opening},
		{"continuation", c.PromptTemplates.Continuation},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
		if err := util.ValidateTemplate(tmpl.value); err != nil {
			return fmt.Errorf("template '%s': %w", tmpl.name, err)
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
