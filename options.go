package transcriptpg

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/hooks"
	"github.com/youssefsiam38/transcriptpg/storage"
)

// Option is a functional option for configuring a Client
type Option func(*options) error

type options struct {
	logger    compaction.Logger
	store     storage.Store
	hooks     *hooks.Registry
	anthropic *anthropic.Client
}

// WithLogger sets the logger used by the client and its compactor.
// A *slog.Logger satisfies the interface.
func WithLogger(logger compaction.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return NewError("WithLogger", ErrInvalidConfig).
				WithContext("reason", "logger is nil")
		}
		o.logger = logger
		return nil
	}
}

// WithStore records a compaction event in store after every call
func WithStore(store storage.Store) Option {
	return func(o *options) error {
		o.store = store
		return nil
	}
}

// WithHooks uses registry for post-tool-use and compaction hooks
func WithHooks(registry *hooks.Registry) Option {
	return func(o *options) error {
		if registry == nil {
			return NewError("WithHooks", ErrInvalidConfig).
				WithContext("reason", "registry is nil")
		}
		o.hooks = registry
		return nil
	}
}

// WithAnthropicClient enables the token counting API for Stats
func WithAnthropicClient(client *anthropic.Client) Option {
	return func(o *options) error {
		o.anthropic = client
		return nil
	}
}
