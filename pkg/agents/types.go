// Package agents implements the agent registry and broadcast bus: drone
// identity, roster, task delegation, and ordered fan-out messaging.
package agents

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// Agent is a registered drone.
type Agent struct {
	AgentID         string         `json:"agent_id"`
	MachineID       string         `json:"machine_id"`
	Role            string         `json:"role"`
	Capabilities    []string       `json:"capabilities"`
	Status          Status         `json:"status"`
	CurrentWorkload int            `json:"current_workload"`
	MaxWorkload     int            `json:"max_workload"`
	RegisteredAt    time.Time      `json:"registered_at"`
	LastSeen        time.Time      `json:"last_seen"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (a Agent) hasCapabilities(required []string) bool {
	set := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		set[c] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

// Severity of a Broadcast.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Broadcast is an append-only, totally-ordered fan-out message.
type Broadcast struct {
	BroadcastID  int64    `json:"broadcast_id"`
	SourceAgent  string   `json:"source_agent"`
	SourceMachine string  `json:"source_machine"`
	Category     string   `json:"category"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	TargetRoles  []string `json:"target_roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterInput is the argument set for Register.
type RegisterInput struct {
	AgentID      string
	MachineID    string
	Role         string
	Capabilities []string
	Metadata     map[string]any
}

// DelegateInput is the argument set for Delegate.
type DelegateInput struct {
	Task                 string
	RequiredCapabilities []string
	TargetAgent          string
	Priority             int
	Deadline             *time.Time
}

// DelegateResult reports the outcome of a delegation.
type DelegateResult struct {
	AssignedAgent string `json:"assigned_agent"`
	TaskMemoryID  string `json:"task_memory_id,omitempty"`
}

// RosterQuery is the argument set for Roster.
type RosterQuery struct {
	IncludeInactive bool
	Limit           int
	Offset          int
}

// RosterPage is a stably-paginated roster result.
type RosterPage struct {
	Agents  []Agent `json:"agents"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
