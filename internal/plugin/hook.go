package plugin

import "context"

// HookOutput is the optional payload a handler hands back to the caller of
// Trigger. A zero HookOutput (Payload == nil) means the handler observed the
// event without transforming anything.
type HookOutput struct {
	Payload map[string]any
}

// HookContext is the data passed to every handler for a given event.
type HookContext struct {
	Event     HookEvent
	Data      map[string]any
	SessionID string
	Timestamp int64 // unix millis
}

// HookResult is one handler's outcome, kept alongside its error so Trigger
// can report a partial failure without aborting its sibling handlers.
type HookResult struct {
	Output HookOutput
	Err    error
}

// HookHandler is a plugin's implementation of a single hook.
type HookHandler func(ctx context.Context, hctx HookContext) (HookOutput, error)

// Hook binds a named handler to an event with a dispatch priority.
type Hook struct {
	Name     string
	Event    HookEvent
	Handler  HookHandler
	Priority int
	Enabled  bool
}

// NewHook creates an enabled hook with priority 0. Chain WithPriority and/or
// SetEnabled to adjust before Register.
func NewHook(name string, event HookEvent, handler HookHandler) *Hook {
	return &Hook{
		Name:    name,
		Event:   event,
		Handler: handler,
		Enabled: true,
	}
}

// WithPriority sets the dispatch priority; higher runs first within an event.
func (h *Hook) WithPriority(priority int) *Hook {
	h.Priority = priority
	return h
}

// SetEnabled toggles whether Trigger considers this hook at all.
func (h *Hook) SetEnabled(enabled bool) *Hook {
	h.Enabled = enabled
	return h
}
