// Package plugin provides the plugin hook bus: named, prioritized, parallel
// hook dispatch with caching for deterministic events and fire-and-forget
// dispatch for notifications.
package plugin

// HookEvent names a point in the engine a plugin can observe or transform.
type HookEvent string

const (
	ConfigLoaded          HookEvent = "config.loaded"
	SessionStart          HookEvent = "session.start"
	SessionEnd            HookEvent = "session.end"
	ToolCall              HookEvent = "tool.call"
	ToolResult            HookEvent = "tool.result"
	MessageSent           HookEvent = "message.sent"
	MessageReceived       HookEvent = "message.received"
	Error                 HookEvent = "error"
	FileChange            HookEvent = "file.change"
	ProviderChange        HookEvent = "provider.change"
	ToolDefinition        HookEvent = "tool.definition"
	ToolExecuteBefore     HookEvent = "tool.execute.before"
	ToolExecuteAfter      HookEvent = "tool.execute.after"
	ChatSystemTransform   HookEvent = "chat.system.transform"
	ChatMessagesTransform HookEvent = "chat.messages.transform"
	ChatParams            HookEvent = "chat.params"
	ChatHeaders           HookEvent = "chat.headers"
	ChatMessage           HookEvent = "chat.message"
	SessionCompacting     HookEvent = "session.compacting"
	TextComplete          HookEvent = "text.complete"
	ShellEnv              HookEvent = "shell.env"
	CommandExecuteBefore  HookEvent = "command.execute.before"
	PermissionAsk         HookEvent = "permission.ask"
)

// cacheableEvents produce deterministic output for the same input and may
// be memoized by a hash of the hook context data.
var cacheableEvents = map[HookEvent]bool{
	ConfigLoaded: true,
	ShellEnv:     true,
}

// fireAndForgetEvents are pure notifications; callers don't need the results
// and dispatch must not block on handler completion.
var fireAndForgetEvents = map[HookEvent]bool{
	SessionCompacting: true,
	Error:             true,
	FileChange:        true,
	SessionEnd:        true,
}
