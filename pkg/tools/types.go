// Package tools provides the tool registry and dispatcher: declarative
// tool registration, typed argument coercion, policy enforcement, and
// duplicate-call guarding.
package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ParamType is the declared type of one tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBool    ParamType = "bool"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ParamSpec describes one named, typed tool argument.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
}

// Tool is a named server-side operation callable by a drone. Only
// bridge-routed tools carry a non-nil MCPTool, since only those need the
// MCP wire schema; the built-in catalogue is described purely by Params.
type Tool struct {
	Name            string
	Description     string
	Params          []ParamSpec
	Group           string
	Type            ToolType
	RequiresSession bool
	RequiresLock    bool
	OutputSizeLimit int
	Deadline        int // seconds; 0 means the dispatcher default (30s)
	MCPTool         *mcp.Tool
	Execute         func(ctx context.Context, input map[string]any) (*Result, error)
}

// ToolType categorizes tools by where they are implemented.
type ToolType string

const (
	ToolTypeBuiltin ToolType = "builtin"
	ToolTypeBridge  ToolType = "bridge"
)

// Result standardizes tool output.
type Result struct {
	Status  ResultStatus   `json:"status"`
	Content []ContentBlock `json:"content,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (r *Result) Text() string {
	if r.Status == ResultError && r.Error != "" {
		return r.Error
	}
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text
		}
	}
	return ""
}

// ContentBlock supports multi-modal results (text, images, audio, resources).
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
	ResultPartial ResultStatus = "partial"
)

// ToolInfo is listing metadata about a registered tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        ToolType `json:"type"`
	Group       string   `json:"group,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// Clone creates a shallow copy of the tool.
func (t *Tool) Clone() *Tool {
	cp := *t
	return &cp
}
