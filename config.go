package transcriptpg

import (
	"fmt"

	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/hooks"
)

// DefaultToolPattern matches every tool call.
const DefaultToolPattern = ""

// Config holds the client configuration
type Config struct {
	// Compaction configures the window, placeholder and locking.
	// Nil means compaction.DefaultConfig().
	Compaction *compaction.Config

	// ToolPattern is a regular expression matched against the whole tool
	// name of a PostToolUse event. Empty matches every tool.
	ToolPattern string
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Compaction:  compaction.DefaultConfig(),
		ToolPattern: DefaultToolPattern,
	}
}

// ApplyDefaults fills in unset fields
func (c *Config) ApplyDefaults() {
	if c.Compaction == nil {
		c.Compaction = compaction.DefaultConfig()
	}
	c.Compaction.ApplyDefaults()
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Compaction != nil {
		if err := c.Compaction.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := hooks.NewMatcher(c.ToolPattern); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
