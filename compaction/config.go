package compaction

import (
	"encoding/base64"
	"fmt"
)

// DefaultPlaceholder is a 1x1 transparent PNG, base64 encoded. It replaces
// the data of evicted images.
const DefaultPlaceholder = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// Default configuration values.
const (
	DefaultWindow              = 10 // keep the last 10 image-bearing entries
	DefaultTokenModel          = "claude-sonnet-4-5-20250929"
	DefaultUseTokenCountingAPI = false
)

// Config holds compaction configuration.
type Config struct {
	// Window is the number of most recent image-bearing entries whose
	// images are kept. Older images are replaced with Placeholder.
	// Default: 10
	Window int

	// Placeholder is the base64 data written over evicted images.
	// Default: DefaultPlaceholder
	Placeholder string

	// DisableFileLock turns off the advisory flock on "<transcript>.lock".
	// The in-process per-path mutex is always used.
	DisableFileLock bool

	// TokenModel is the model used by the token counting API in Stats.
	// Default: "claude-sonnet-4-5-20250929"
	TokenModel string

	// UseTokenCountingAPI makes Stats call the Anthropic token counting
	// API when a client is available. Otherwise tokens are approximated.
	UseTokenCountingAPI bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Window:              DefaultWindow,
		Placeholder:         DefaultPlaceholder,
		TokenModel:          DefaultTokenModel,
		UseTokenCountingAPI: DefaultUseTokenCountingAPI,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	if c.TokenModel == "" {
		c.TokenModel = DefaultTokenModel
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, c.Window)
	}

	if c.Placeholder == "" {
		return fmt.Errorf("%w: placeholder is required", ErrInvalidConfig)
	}

	if _, err := base64.StdEncoding.DecodeString(c.Placeholder); err != nil {
		return fmt.Errorf("%w: placeholder is not valid base64: %v", ErrInvalidConfig, err)
	}

	if c.UseTokenCountingAPI && c.TokenModel == "" {
		return fmt.Errorf("%w: token_model is required when token counting API is enabled", ErrInvalidConfig)
	}

	return nil
}
