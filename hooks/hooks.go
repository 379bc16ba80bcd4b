package hooks

import (
	"context"
	"sync"

	"github.com/youssefsiam38/transcriptpg/compaction"
)

// PostToolUseHook is called when the agent runtime reports a finished tool call
type PostToolUseHook func(ctx context.Context, input *PostToolUseInput) error

// BeforeCompactionHook is called before a transcript is compacted
type BeforeCompactionHook func(ctx context.Context, transcriptPath string) error

// AfterCompactionHook is called after a transcript is compacted
type AfterCompactionHook func(ctx context.Context, result *compaction.Result) error

// Registry holds all registered hooks
type Registry struct {
	mu               sync.RWMutex
	postToolUse      []PostToolUseHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		postToolUse:      []PostToolUseHook{},
		beforeCompaction: []BeforeCompactionHook{},
		afterCompaction:  []AfterCompactionHook{},
	}
}

// OnPostToolUse registers a hook to be called after a tool call
func (r *Registry) OnPostToolUse(hook PostToolUseHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postToolUse = append(r.postToolUse, hook)
}

// OnBeforeCompaction registers a hook to be called before compaction
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerPostToolUse calls all registered post-tool-use hooks
func (r *Registry) TriggerPostToolUse(ctx context.Context, input *PostToolUseInput) error {
	r.mu.RLock()
	hooks := make([]PostToolUseHook, len(r.postToolUse))
	copy(hooks, r.postToolUse)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all registered before-compaction hooks
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, transcriptPath string) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, transcriptPath); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks
func (r *Registry) TriggerAfterCompaction(ctx context.Context, result *compaction.Result) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
