package tools

import (
	"context"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
)

const (
	GroupMemory    = "group:memory"
	GroupAgents    = "group:agents"
	GroupBackup    = "group:backup"
	GroupTickets   = "group:tickets"
	GroupBridge    = "group:bridge"
)

// BridgeInfo is the listing shape for a registered bridge server, kept
// local to this package so builtin.go never imports package bridge — that
// import would cycle back here, since bridge registers discovered remote
// tools into this package's Registry.
type BridgeInfo struct {
	ServerID string   `json:"server_id"`
	Status   string   `json:"status"`
	Tools    []string `json:"tools"`
}

// BridgeCaller is the thin seam the call_bridge_tool/list_bridges builtins
// are written against.
type BridgeCaller interface {
	ListBridges(ctx context.Context) ([]BridgeInfo, error)
	CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*Result, error)
}

// BackupService is the thin seam the config-backup builtins are written
// against.
type BackupService interface {
	CreateSnapshot(ctx context.Context, systemID, configType, content, filePath, agentID string, tags []string) (string, error)
	DetectDrift(ctx context.Context, systemID string, hoursBack int) ([]map[string]any, error)
	GetAlerts(ctx context.Context, systemID string) ([]map[string]any, error)
	Restore(ctx context.Context, snapshotID, targetPath string) (string, error)
}

// TicketService is the thin seam the ticket builtins are written against.
type TicketService interface {
	CreateTicket(ctx context.Context, projectID, title, description, ticketType, priority, reporter string) (map[string]any, error)
	UpdateStatus(ctx context.Context, ticketID, newStatus string) (map[string]any, error)
	AddComment(ctx context.Context, ticketID, text, author string) (map[string]any, error)
	GetMetrics(ctx context.Context, projectID string, days int) (map[string]any, error)
}

// BuiltinDeps wires the fixed tool catalogue to the hub's live services.
type BuiltinDeps struct {
	Memory  memory.Store
	Agents  *agents.Registry
	Bus     *agents.Bus
	Backup  BackupService
	Tickets TicketService
	Bridges BridgeCaller

	// MachineID identifies the hub process for memory items it writes
	// directly (as opposed to ones a drone attributes to itself via args).
	MachineID string
}

// BuiltinTools returns the fixed catalogue of hub operations, each
// wired directly to BuiltinDeps.
func BuiltinTools(deps BuiltinDeps) []*Tool {
	tools := []*Tool{
		storeMemoryTool(deps),
		retrieveMemoryTool(deps),
		searchMemoryTool(deps),
		recentMemoriesTool(deps),
		deleteMemoryTool(deps),
		registerAgentTool(deps),
		getRosterTool(deps),
		delegateTaskTool(deps),
		broadcastMessageTool(deps),
	}
	if deps.Backup != nil {
		tools = append(tools,
			createSnapshotTool(deps),
			detectDriftTool(deps),
			getAlertsTool(deps),
			restoreConfigTool(deps),
		)
	}
	if deps.Tickets != nil {
		tools = append(tools,
			createTicketTool(deps),
			updateTicketStatusTool(deps),
			addTicketCommentTool(deps),
			getTicketMetricsTool(deps),
		)
	}
	if deps.Bridges != nil {
		tools = append(tools, listBridgesTool(deps), callBridgeToolTool(deps))
	}
	return tools
}

// DefaultRegistry builds a Registry pre-populated with the builtin
// catalogue.
func DefaultRegistry(deps BuiltinDeps) *Registry {
	reg := NewRegistry()
	for _, t := range BuiltinTools(deps) {
		reg.Register(t)
	}
	return reg
}

func truncateResult(r *Result, limit int) *Result {
	if r == nil {
		return r
	}
	for i := range r.Content {
		if r.Content[i].Type == "text" {
			r.Content[i].Text = memory.Truncate(r.Content[i].Text, limit)
		}
	}
	return r
}

func storeMemoryTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "store_memory",
		Description: "Store a memory item in the collective memory store.",
		Group:       GroupMemory,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "content", Type: ParamString, Required: true},
			{Name: "category", Type: ParamString, Required: true},
			{Name: "scope", Type: ParamString, Default: "global"},
			{Name: "tags", Type: ParamArray},
			{Name: "metadata", Type: ParamObject},
			{Name: "context", Type: ParamString},
			{Name: "machine_id", Type: ParamString},
			{Name: "agent_id", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			content, err := ReadString(input, "content", true)
			if err != nil {
				return nil, err
			}
			category, err := ReadString(input, "category", true)
			if err != nil {
				return nil, err
			}
			scope := ReadStringDefault(input, "scope", "global")
			metadata, _ := ReadMap(input, "metadata", false)
			machineID := ReadStringDefault(input, "machine_id", deps.MachineID)

			id, err := deps.Memory.Store(ctx, memory.StoreInput{
				Content:   content,
				Category:  memory.Category(category),
				Scope:     memory.Scope(scope),
				Tags:      ReadStringArray(input, "tags"),
				Metadata:  metadata,
				Context:   ReadStringDefault(input, "context", ""),
				MachineID: machineID,
				AgentID:   ReadStringDefault(input, "agent_id", ""),
			})
			if err != nil {
				return nil, err
			}
			return JSONResult(map[string]any{"id": id}), nil
		},
	}
}

func retrieveMemoryTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "retrieve_memory",
		Description: "Retrieve a memory item by id.",
		Group:       GroupMemory,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "id", Type: ParamString, Required: true},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			id, err := ReadString(input, "id", true)
			if err != nil {
				return nil, err
			}
			item, err := deps.Memory.Retrieve(ctx, id)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return ErrorResultf("retrieve_memory", "no memory with id %q", id), nil
			}
			return JSONResult(item), nil
		},
	}
}

func searchMemoryTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:            "search_memory",
		Description:     "Search the collective memory store.",
		Group:           GroupMemory,
		Type:            ToolTypeBuiltin,
		OutputSizeLimit: 80000,
		Params: []ParamSpec{
			{Name: "query", Type: ParamString},
			{Name: "category", Type: ParamString},
			{Name: "scope", Type: ParamString},
			{Name: "include_global", Type: ParamBool, Default: false},
			{Name: "machine_filter_in", Type: ParamArray},
			{Name: "machine_filter_out", Type: ParamArray},
			{Name: "semantic", Type: ParamBool, Default: true},
			{Name: "limit", Type: ParamInteger, Default: 20},
			{Name: "offset", Type: ParamInteger, Default: 0},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			page, err := deps.Memory.Search(ctx, memory.SearchQuery{
				Query:            ReadStringDefault(input, "query", ""),
				Category:         memory.Category(ReadStringDefault(input, "category", "")),
				Scope:            memory.Scope(ReadStringDefault(input, "scope", "")),
				IncludeGlobal:    ReadBool(input, "include_global", false),
				MachineFilterIn:  ReadStringArray(input, "machine_filter_in"),
				MachineFilterOut: ReadStringArray(input, "machine_filter_out"),
				Semantic:         ReadBool(input, "semantic", true),
				Limit:            ReadIntDefault(input, "limit", 20),
				Offset:           ReadIntDefault(input, "offset", 0),
			})
			if err != nil {
				return nil, err
			}
			return truncateResult(JSONResult(page), 80000), nil
		},
	}
}

func recentMemoriesTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "recent_memories",
		Description: "List recent memory items by created_at descending.",
		Group:       GroupMemory,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "hours", Type: ParamInteger, Default: 24},
			{Name: "category", Type: ParamString},
			{Name: "limit", Type: ParamInteger, Default: 20},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			items, err := deps.Memory.Recent(ctx, memory.RecentQuery{
				Hours:    ReadIntDefault(input, "hours", 24),
				Category: memory.Category(ReadStringDefault(input, "category", "")),
				Limit:    ReadIntDefault(input, "limit", 20),
			})
			if err != nil {
				return nil, err
			}
			return JSONResult(items), nil
		},
	}
}

func deleteMemoryTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "delete_memory",
		Description: "Tombstone a memory item so future searches exclude it.",
		Group:       GroupMemory,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "id", Type: ParamString, Required: true},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			id, err := ReadString(input, "id", true)
			if err != nil {
				return nil, err
			}
			if err := deps.Memory.Delete(ctx, id); err != nil {
				return nil, err
			}
			return TextResult("deleted"), nil
		},
	}
}

func registerAgentTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "register_agent",
		Description: "Register or refresh a drone in the agent registry.",
		Group:       GroupAgents,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "agent_id", Type: ParamString, Required: true},
			{Name: "machine_id", Type: ParamString},
			{Name: "role", Type: ParamString},
			{Name: "capabilities", Type: ParamArray},
			{Name: "metadata", Type: ParamObject},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			agentID, err := ReadString(input, "agent_id", true)
			if err != nil {
				return nil, err
			}
			metadata, _ := ReadMap(input, "metadata", false)
			agent, err := deps.Agents.Register(ctx, agents.RegisterInput{
				AgentID:      agentID,
				MachineID:    ReadStringDefault(input, "machine_id", ""),
				Role:         ReadStringDefault(input, "role", ""),
				Capabilities: ReadStringArray(input, "capabilities"),
				Metadata:     metadata,
			})
			if err != nil {
				return nil, err
			}
			return JSONResult(agent), nil
		},
	}
}

func getRosterTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "get_roster",
		Description: "List registered agents.",
		Group:       GroupAgents,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "include_inactive", Type: ParamBool, Default: false},
			{Name: "limit", Type: ParamInteger, Default: 50},
			{Name: "offset", Type: ParamInteger, Default: 0},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			page := deps.Agents.Roster(agents.RosterQuery{
				IncludeInactive: ReadBool(input, "include_inactive", false),
				Limit:           ReadIntDefault(input, "limit", 50),
				Offset:          ReadIntDefault(input, "offset", 0),
			})
			return JSONResult(page), nil
		},
	}
}

func delegateTaskTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "delegate_task",
		Description: "Delegate a task to the best-matched active agent.",
		Group:       GroupAgents,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "task", Type: ParamString, Required: true},
			{Name: "required_capabilities", Type: ParamArray},
			{Name: "target_agent", Type: ParamString},
			{Name: "priority", Type: ParamInteger, Default: 0},
			{Name: "deadline", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			task, err := ReadString(input, "task", true)
			if err != nil {
				return nil, err
			}
			var deadline *time.Time
			if raw, _ := ReadString(input, "deadline", false); raw != "" {
				if parsed, perr := time.Parse(time.RFC3339, raw); perr == nil {
					deadline = &parsed
				}
			}
			result, err := deps.Agents.Delegate(ctx, agents.DelegateInput{
				Task:                 task,
				RequiredCapabilities: ReadStringArray(input, "required_capabilities"),
				TargetAgent:          ReadStringDefault(input, "target_agent", ""),
				Priority:             ReadIntDefault(input, "priority", 0),
				Deadline:             deadline,
			})
			if err != nil {
				return nil, err
			}
			return JSONResult(result), nil
		},
	}
}

func broadcastMessageTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "broadcast_message",
		Description: "Publish a totally-ordered broadcast to active agents.",
		Group:       GroupAgents,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "message", Type: ParamString, Required: true},
			{Name: "category", Type: ParamString, Default: "general"},
			{Name: "severity", Type: ParamString, Default: "info"},
			{Name: "source_agent", Type: ParamString},
			{Name: "source_machine", Type: ParamString},
			{Name: "target_roles", Type: ParamArray},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			message, err := ReadString(input, "message", true)
			if err != nil {
				return nil, err
			}
			bc := deps.Bus.Publish(
				ReadStringDefault(input, "source_agent", ""),
				ReadStringDefault(input, "source_machine", ""),
				ReadStringDefault(input, "category", "general"),
				agents.Severity(ReadStringDefault(input, "severity", "info")),
				message,
				ReadStringArray(input, "target_roles"),
			)
			return JSONResult(bc), nil
		},
	}
}

func createSnapshotTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "create_snapshot",
		Description: "Create a deduplicated config snapshot for a system.",
		Group:       GroupBackup,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "system_id", Type: ParamString, Required: true},
			{Name: "config_type", Type: ParamString, Required: true},
			{Name: "content", Type: ParamString, Required: true},
			{Name: "file_path", Type: ParamString},
			{Name: "agent_id", Type: ParamString},
			{Name: "tags", Type: ParamArray},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			systemID, err := ReadString(input, "system_id", true)
			if err != nil {
				return nil, err
			}
			configType, err := ReadString(input, "config_type", true)
			if err != nil {
				return nil, err
			}
			content, err := ReadString(input, "content", true)
			if err != nil {
				return nil, err
			}
			id, err := deps.Backup.CreateSnapshot(ctx, systemID, configType, content,
				ReadStringDefault(input, "file_path", ""),
				ReadStringDefault(input, "agent_id", ""),
				ReadStringArray(input, "tags"))
			if err != nil {
				return nil, err
			}
			return JSONResult(map[string]any{"id": id}), nil
		},
	}
}

func detectDriftTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "detect_drift",
		Description: "Return diffs in a time window whose risk score exceeds the threshold.",
		Group:       GroupBackup,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "system_id", Type: ParamString},
			{Name: "hours_back", Type: ParamInteger, Default: 24},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			diffs, err := deps.Backup.DetectDrift(ctx,
				ReadStringDefault(input, "system_id", ""),
				ReadIntDefault(input, "hours_back", 24))
			if err != nil {
				return nil, err
			}
			return JSONResult(diffs), nil
		},
	}
}

func getAlertsTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "get_alerts",
		Description: "List config drift alerts for a system.",
		Group:       GroupBackup,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "system_id", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			alerts, err := deps.Backup.GetAlerts(ctx, ReadStringDefault(input, "system_id", ""))
			if err != nil {
				return nil, err
			}
			return JSONResult(alerts), nil
		},
	}
}

func restoreConfigTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "restore_config",
		Description: "Restore a snapshot's content, optionally writing it to target_path.",
		Group:       GroupBackup,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "snapshot_id", Type: ParamString, Required: true},
			{Name: "target_path", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			snapshotID, err := ReadString(input, "snapshot_id", true)
			if err != nil {
				return nil, err
			}
			content, err := deps.Backup.Restore(ctx, snapshotID, ReadStringDefault(input, "target_path", ""))
			if err != nil {
				return nil, err
			}
			return TextResult(content), nil
		},
	}
}

func createTicketTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "create_ticket",
		Description: "Create a ticket and its mirror memory.",
		Group:       GroupTickets,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "project_id", Type: ParamString, Required: true},
			{Name: "title", Type: ParamString, Required: true},
			{Name: "description", Type: ParamString},
			{Name: "ticket_type", Type: ParamString, Default: "task"},
			{Name: "priority", Type: ParamString, Default: "medium"},
			{Name: "reporter", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			projectID, err := ReadString(input, "project_id", true)
			if err != nil {
				return nil, err
			}
			title, err := ReadString(input, "title", true)
			if err != nil {
				return nil, err
			}
			ticket, err := deps.Tickets.CreateTicket(ctx, projectID, title,
				ReadStringDefault(input, "description", ""),
				ReadStringDefault(input, "ticket_type", "task"),
				ReadStringDefault(input, "priority", "medium"),
				ReadStringDefault(input, "reporter", ""))
			if err != nil {
				return nil, err
			}
			return JSONResult(ticket), nil
		},
	}
}

func updateTicketStatusTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "update_ticket_status",
		Description: "Transition a ticket's status through its FSM.",
		Group:       GroupTickets,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "ticket_id", Type: ParamString, Required: true},
			{Name: "status", Type: ParamString, Required: true},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			ticketID, err := ReadString(input, "ticket_id", true)
			if err != nil {
				return nil, err
			}
			status, err := ReadString(input, "status", true)
			if err != nil {
				return nil, err
			}
			ticket, err := deps.Tickets.UpdateStatus(ctx, ticketID, status)
			if err != nil {
				return nil, err
			}
			return JSONResult(ticket), nil
		},
	}
}

func addTicketCommentTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "add_ticket_comment",
		Description: "Add a comment to a ticket and its mirror memory.",
		Group:       GroupTickets,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "ticket_id", Type: ParamString, Required: true},
			{Name: "text", Type: ParamString, Required: true},
			{Name: "author", Type: ParamString},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			ticketID, err := ReadString(input, "ticket_id", true)
			if err != nil {
				return nil, err
			}
			text, err := ReadString(input, "text", true)
			if err != nil {
				return nil, err
			}
			comment, err := deps.Tickets.AddComment(ctx, ticketID, text, ReadStringDefault(input, "author", ""))
			if err != nil {
				return nil, err
			}
			return JSONResult(comment), nil
		},
	}
}

func getTicketMetricsTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "get_ticket_metrics",
		Description: "Aggregate ticket counts and resolution metrics for a project.",
		Group:       GroupTickets,
		Type:        ToolTypeBuiltin,
		Params: []ParamSpec{
			{Name: "project_id", Type: ParamString, Required: true},
			{Name: "days", Type: ParamInteger, Default: 30},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			projectID, err := ReadString(input, "project_id", true)
			if err != nil {
				return nil, err
			}
			metrics, err := deps.Tickets.GetMetrics(ctx, projectID, ReadIntDefault(input, "days", 30))
			if err != nil {
				return nil, err
			}
			return JSONResult(metrics), nil
		},
	}
}

func listBridgesTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "list_bridges",
		Description: "List registered bridge servers and their discovered tools.",
		Group:       GroupBridge,
		Type:        ToolTypeBuiltin,
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			bridges, err := deps.Bridges.ListBridges(ctx)
			if err != nil {
				return nil, err
			}
			return JSONResult(bridges), nil
		},
	}
}

func callBridgeToolTool(deps BuiltinDeps) *Tool {
	return &Tool{
		Name:        "call_bridge_tool",
		Description: "Proxy a tool call to a registered bridge server.",
		Group:       GroupBridge,
		Type:        ToolTypeBuiltin,
		Deadline:    30,
		Params: []ParamSpec{
			{Name: "server_id", Type: ParamString, Required: true},
			{Name: "tool", Type: ParamString, Required: true},
			{Name: "args", Type: ParamObject},
		},
		Execute: func(ctx context.Context, input map[string]any) (*Result, error) {
			serverID, err := ReadString(input, "server_id", true)
			if err != nil {
				return nil, err
			}
			toolName, err := ReadString(input, "tool", true)
			if err != nil {
				return nil, err
			}
			args, _ := ReadMap(input, "args", false)
			result, err := deps.Bridges.CallTool(ctx, serverID, toolName, args)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	}
}
