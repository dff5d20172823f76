// Package session provides session processing and the agentic loop.
package session

import "github.com/opencode-ai/opencode/internal/permission"

// Agent represents an agent configuration for processing.
type Agent struct {
	// Name is the agent identifier. checkToolPermission resolves it through
	// permission.BuildAgentRuleset to get the base ruleset this agent runs
	// under ("build", "plan", "explore", or the shared defaults for any
	// other name).
	Name string `json:"name"`

	// Prompt is the base system prompt for this agent.
	Prompt string `json:"prompt"`

	// Temperature for LLM sampling.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP for nucleus sampling.
	TopP float64 `json:"topP,omitempty"`

	// MaxSteps is the maximum number of agentic loop iterations.
	MaxSteps int `json:"maxSteps,omitempty"`

	// Tools is the list of enabled tool IDs.
	Tools []string `json:"tools,omitempty"`

	// DisabledTools is the list of disabled tool IDs.
	DisabledTools []string `json:"disabledTools,omitempty"`

	// Permission contains the doom-loop policy for this agent. Bash/Edit
	// permission decisions run through the ruleset engine instead (see
	// checkToolPermission); DoomLoop is still consulted directly by
	// checkDoomLoop.
	Permission AgentPermission `json:"permission,omitempty"`

	// UserRules carries caller/config-level overrides layered on top of
	// this agent's base ruleset, last-match-wins.
	UserRules permission.Ruleset `json:"-"`
}

// AgentPermission defines permission policies for an agent.
type AgentPermission struct {
	// DoomLoop defines how to handle repeated identical tool calls.
	// Values: "allow", "deny", "ask" (default)
	DoomLoop string `json:"doomLoop,omitempty"`

	// Bash defines the permission policy for bash commands.
	// Values: "allow", "deny", "ask" (default)
	Bash string `json:"bash,omitempty"`

	// Write defines the permission policy for file writes.
	// Values: "allow", "deny", "ask" (default)
	Write string `json:"write,omitempty"`
}

// ToolEnabled returns whether a tool is enabled for this agent.
func (a *Agent) ToolEnabled(toolID string) bool {
	// Check if explicitly disabled
	for _, disabled := range a.DisabledTools {
		if disabled == toolID {
			return false
		}
	}

	// If Tools is empty, all tools are enabled
	if len(a.Tools) == 0 {
		return true
	}

	// Check if explicitly enabled
	for _, enabled := range a.Tools {
		if enabled == toolID {
			return true
		}
	}

	return false
}

// DefaultAgent returns the default agent configuration.
func DefaultAgent() *Agent {
	return &Agent{
		Name:        "default",
		Temperature: 0.7,
		TopP:        1.0,
		MaxSteps:    50,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "ask",
		},
	}
}

// CodeAgent returns an agent optimized for coding tasks.
func CodeAgent() *Agent {
	return &Agent{
		Name:        "code",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    100,
		Prompt: `You are an expert software engineer helping with coding tasks.
Focus on writing clean, maintainable code. Follow best practices and existing conventions in the codebase.
When making changes, prefer minimal modifications and explain your reasoning.`,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "allow",
		},
	}
}

// PlanAgent returns an agent optimized for planning tasks.
func PlanAgent() *Agent {
	return &Agent{
		Name:        "plan",
		Temperature: 0.5,
		TopP:        1.0,
		MaxSteps:    20,
		Prompt: `You are a helpful assistant focused on planning and analysis.
Break down complex tasks into manageable steps and provide clear explanations.
Focus on understanding the problem before suggesting solutions.`,
		DisabledTools: []string{"Write", "Edit", "Bash"},
		Permission: AgentPermission{
			DoomLoop: "deny",
			Bash:     "deny",
			Write:    "deny",
		},
	}
}

// BuildAgent returns the general-purpose coding agent: the default ruleset
// plus the ability to answer clarifying questions and hand off into plan
// mode, per permission.BuildAgentRuleset's "build" case.
func BuildAgent() *Agent {
	return &Agent{
		Name:        "build",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    100,
		Prompt: `You are an expert software engineer building and modifying code.
Focus on writing clean, maintainable code. Follow best practices and existing conventions in the codebase.
When making changes, prefer minimal modifications and explain your reasoning.
Ask clarifying questions when requirements are ambiguous, and hand off to plan mode for larger design work.`,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "allow",
		},
	}
}

// ExploreAgent returns a read-only investigation agent: a deny-everything
// base with search, listing, shell and fetch tools allowed, per
// permission.BuildAgentRuleset's "explore" case. It never edits files.
func ExploreAgent() *Agent {
	return &Agent{
		Name:        "explore",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    50,
		Prompt: `You are a code exploration assistant. Investigate the codebase to answer
questions: search, read, and list files, run read-only shell commands, and fetch or search the web.
You cannot edit or write files; report findings instead of making changes.`,
		DisabledTools: []string{"Write", "edit"},
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
		},
	}
}
