// Package tickets coordinates work items against an external board
// service (modeled here as a thin BoardClient interface), mirroring every
// create/update into the collective memory store so ticket search reuses
// the same semantic index as everything else.
package tickets

import (
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

// Status is a ticket's FSM state.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// validTransitions maps a state to the states reachable from it in one
// step. new → in_progress → review → done is the happy path;
// blocked/cancelled are reachable from any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusNew:        {StatusInProgress, StatusBlocked, StatusCancelled},
	StatusInProgress: {StatusReview, StatusBlocked, StatusCancelled},
	StatusReview:     {StatusDone, StatusInProgress, StatusBlocked, StatusCancelled},
	StatusBlocked:    {StatusInProgress, StatusReview, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal FSM edge.
func CanTransition(from, to Status) bool {
	if from.terminal() {
		return false
	}
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func validateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return hiveerr.New(hiveerr.KindInvalidStateTransition, "cannot transition ticket from %q to %q", from, to)
	}
	return nil
}

// Ticket is a single work item tracked against a project.
type Ticket struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Priority    string    `json:"priority"`
	Status      Status    `json:"status"`
	Reporter    string    `json:"reporter,omitempty"`
	MemoryID    string    `json:"memory_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Comment is a single note attached to a ticket.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	MemoryID  string    `json:"memory_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Metrics aggregates ticket counts and resolution stats for a project
// window.
type Metrics struct {
	ProjectID          string         `json:"project_id"`
	WindowDays         int            `json:"window_days"`
	TotalTickets       int            `json:"total_tickets"`
	ByStatus           map[string]int `json:"by_status"`
	ByPriority         map[string]int `json:"by_priority"`
	ByType             map[string]int `json:"by_type"`
	AvgResolutionHours float64        `json:"avg_resolution_hours"`
	CriticalOpen       int            `json:"critical_open"`
	OverdueOpen        int            `json:"overdue_open"`
}
