// Package tool provides the tool framework for LLM tool execution.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool returns an Eino-compatible tool implementation.
	EinoTool() einotool.InvokableTool
}

// PermissionRequest describes a permission prompt a tool wants to raise
// against the engine before proceeding with a side-effecting action.
type PermissionRequest struct {
	Permission string
	Pattern    string
	Title      string
	Metadata   map[string]any
}

// Question is a single multiple-choice or free-text prompt a tool wants to
// put to the user mid-execution (used by the question tool).
type Question struct {
	Text    string
	Options []string
}

// SubsessionRequest names the parameters for spawning a child session from
// within a tool (used by the task tool).
type SubsessionRequest struct {
	Agent          string
	Title          string
	PreferredModel *string
	DisabledTools  []string
}

// Context provides execution context to tools: identifiers, the worktree
// root, an abort signal, and the callback bundle a tool uses to reach back
// into the engine for permission prompts, user questions, file-time
// tracking, bus events, LSP touches, and sub-session primitives.
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	Agent     string
	WorkDir   string
	AbortCh   <-chan struct{}
	Extra     map[string]any

	// OnMetadata is the metadata callback for real-time updates.
	OnMetadata func(title string, meta map[string]any)

	// AskPermission blocks until the permission engine resolves req, or
	// returns immediately for allow/deny rules. Tools call this before any
	// side-effecting action gated by the ruleset.
	AskPermission func(ctx context.Context, req PermissionRequest) error

	// AskQuestion prompts the user with one or more questions and returns
	// their answers in order.
	AskQuestion func(ctx context.Context, questions []Question) ([]string, error)

	// FileTimeAssert returns an error if path has been modified on disk
	// since it was last read within this session, guarding against
	// clobbering concurrent edits. FileTimeRead records the current read
	// time for path.
	FileTimeAssert func(path string) error
	FileTimeRead   func(path string)

	// PublishBus emits an event onto the plugin hook bus / event bus under
	// the given name, carrying payload.
	PublishBus func(name string, payload map[string]any)

	// LSPTouchFile notifies the language server registry that path was
	// read or edited, so it can open or refresh the file and surface
	// diagnostics. edited is true for writes, false for reads.
	LSPTouchFile func(ctx context.Context, path string, edited bool) ([]Diagnostic, error)

	// CreateSubsession spawns a child session under the given agent and
	// returns its id.
	CreateSubsession func(ctx context.Context, req SubsessionRequest) (sessionID string, err error)

	// PromptSubsession sends prompt to an existing child session and
	// returns its final text response.
	PromptSubsession func(ctx context.Context, sessionID, prompt string) (string, error)

	// LastModel returns the provider/model pair most recently used in this
	// session, if any.
	LastModel func() *ModelRef

	// UpdatePart re-submits the JSON-encoded form of a part already
	// emitted by this tool call, used to stream incremental updates.
	UpdatePart func(partJSON json.RawMessage) error

	// IsExternalPath reports whether path falls outside the session's
	// worktree, for tools that must gate on the external_directory
	// permission before touching it.
	IsExternalPath func(path string) bool

	// Registry allows a tool (batch) to resolve and re-invoke other tools
	// by id.
	Registry Lookup
}

// ModelRef identifies a provider/model pair.
type ModelRef struct {
	ProviderID string
	ModelID    string
}

// Diagnostic is a single LSP diagnostic surfaced after touching a file.
type Diagnostic struct {
	Path     string
	Line     int
	Severity string
	Message  string
}

// Lookup resolves a tool by id, used for batch re-entry.
type Lookup interface {
	Get(id string) (Tool, bool)
}

// SetMetadata updates tool execution metadata.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted checks if the tool execution has been aborted.
func (c *Context) IsAborted() bool {
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Ask raises a permission request, allowing immediately when no callback is
// wired (e.g. in tests or the eino wrapper's bare context).
func (c *Context) Ask(ctx context.Context, req PermissionRequest) error {
	if c.AskPermission == nil {
		return nil
	}
	return c.AskPermission(ctx, req)
}

// AssertFileTime is a no-op when no callback is wired.
func (c *Context) AssertFileTime(path string) error {
	if c.FileTimeAssert == nil {
		return nil
	}
	return c.FileTimeAssert(path)
}

// RecordFileTime is a no-op when no callback is wired.
func (c *Context) RecordFileTime(path string) {
	if c.FileTimeRead != nil {
		c.FileTimeRead(path)
	}
}

// Publish is a no-op when no callback is wired.
func (c *Context) Publish(name string, payload map[string]any) {
	if c.PublishBus != nil {
		c.PublishBus(name, payload)
	}
}

// TouchLSP is a no-op returning no diagnostics when no callback is wired.
func (c *Context) TouchLSP(ctx context.Context, path string, edited bool) []Diagnostic {
	if c.LSPTouchFile == nil {
		return nil
	}
	diags, _ := c.LSPTouchFile(ctx, path, edited)
	return diags
}

// IsExternal reports whether path falls outside the session worktree. It
// defaults to false when no callback is wired.
func (c *Context) IsExternal(path string) bool {
	if c.IsExternalPath == nil {
		return false
	}
	return c.IsExternalPath(path)
}

// Result represents the output of a tool execution.
type Result struct {
	Title       string            `json:"title"`
	Output      string            `json:"output"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Error       error             `json:"-"`
}

// Attachment represents a file attachment.
type Attachment struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"` // data: URL or file path
}

// BaseTool provides a base implementation for tools.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a new base tool.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                   { return t.id }
func (t *BaseTool) Description() string          { return t.description }
func (t *BaseTool) Parameters() json.RawMessage  { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// EinoTool returns an Eino-compatible tool implementation.
func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// einoToolWrapper wraps a Tool to implement Eino's InvokableTool interface.
type einoToolWrapper struct {
	tool Tool
}

// Info returns the tool information.
func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := parseJSONSchemaToParams(w.tool.Parameters())
	return &schema.ToolInfo{
		Name:        w.tool.ID(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun executes the tool.
func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	toolCtx := &Context{
		WorkDir: "",
	}

	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), toolCtx)
	if err != nil {
		return "", err
	}

	return result.Output, nil
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}
