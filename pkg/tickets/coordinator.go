package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
)

// Coordinator is a facade over BoardClient that additionally mirrors
// every create/update into the memory store under category "tickets",
// with stable tags so ticket search reuses the semantic index.
type Coordinator struct {
	board  BoardClient
	memory memory.Store
	now    func() time.Time
}

func NewCoordinator(board BoardClient, mem memory.Store) *Coordinator {
	return &Coordinator{board: board, memory: mem, now: time.Now}
}

func (c *Coordinator) mirrorTicket(ctx context.Context, t Ticket, note string) {
	content := fmt.Sprintf("%s\n\n%s\n\nStatus: %s", t.Title, t.Description, t.Status)
	if note != "" {
		content = note + "\n\n" + content
	}
	id, err := c.memory.Store(ctx, memory.StoreInput{
		Content:  content,
		Category: memory.CategoryTickets,
		Scope:    memory.ScopeProject,
		Project:  t.ProjectID,
		Tags:     []string{"ticket", t.ID, t.Type, t.Priority, string(t.Status)},
		Metadata: map[string]any{"ticket_id": t.ID, "status": string(t.Status)},
	})
	if err == nil {
		t.MemoryID = id
		_ = c.board.Update(ctx, t)
	}
}

// CreateTicket creates a ticket in status "new" and its mirror memory.
func (c *Coordinator) CreateTicket(ctx context.Context, projectID, title, description, ticketType, priority, reporter string) (map[string]any, error) {
	if projectID == "" || title == "" {
		return nil, hiveerr.New(hiveerr.KindBadArgument, "project_id and title are required")
	}
	if ticketType == "" {
		ticketType = "task"
	}
	if priority == "" {
		priority = "medium"
	}
	t, err := c.board.Create(ctx, Ticket{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Type:        ticketType,
		Priority:    priority,
		Status:      StatusNew,
		Reporter:    reporter,
	})
	if err != nil {
		return nil, err
	}
	c.mirrorTicket(ctx, t, "")
	return ticketToMap(t), nil
}

// UpdateStatus transitions a ticket through its FSM. Illegal transitions
// return InvalidStateTransition.
func (c *Coordinator) UpdateStatus(ctx context.Context, ticketID, newStatus string) (map[string]any, error) {
	t, err := c.board.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	target := Status(newStatus)
	if err := validateTransition(t.Status, target); err != nil {
		return nil, err
	}
	t.Status = target
	if target == StatusDone || target == StatusCancelled {
		now := c.now()
		t.ResolvedAt = &now
	}
	if err := c.board.Update(ctx, t); err != nil {
		return nil, err
	}
	c.mirrorTicket(ctx, t, fmt.Sprintf("Status changed to %s", target))
	return ticketToMap(t), nil
}

// AddComment creates a board comment and its mirror memory.
func (c *Coordinator) AddComment(ctx context.Context, ticketID, text, author string) (map[string]any, error) {
	if text == "" {
		return nil, hiveerr.New(hiveerr.KindBadArgument, "text is required")
	}
	comment, err := c.board.AddComment(ctx, Comment{TicketID: ticketID, Text: text, Author: author})
	if err != nil {
		return nil, err
	}
	t, err := c.board.Get(ctx, ticketID)
	if err == nil {
		id, memErr := c.memory.Store(ctx, memory.StoreInput{
			Content:  fmt.Sprintf("Comment on %s: %s", t.Title, text),
			Category: memory.CategoryTickets,
			Scope:    memory.ScopeProject,
			Project:  t.ProjectID,
			Tags:     []string{"ticket", "comment", ticketID},
			Metadata: map[string]any{"ticket_id": ticketID, "author": author},
		})
		if memErr == nil {
			comment.MemoryID = id
		}
	}
	return commentToMap(comment), nil
}

// GetComments returns a ticket's board comments in creation order. The
// mirror memory id is not stored on the board comment, so "memory_id" is
// empty in these maps; only AddComment's result carries it.
func (c *Coordinator) GetComments(ctx context.Context, ticketID string) ([]map[string]any, error) {
	comments, err := c.board.Comments(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(comments))
	for _, cm := range comments {
		out = append(out, commentToMap(cm))
	}
	return out, nil
}

// GetMetrics aggregates ticket counts, resolution time, and critical/
// overdue open counts for a project over the trailing window.
func (c *Coordinator) GetMetrics(ctx context.Context, projectID string, days int) (map[string]any, error) {
	if days <= 0 {
		days = 30
	}
	all, err := c.board.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cutoff := c.now().Add(-time.Duration(days) * 24 * time.Hour)

	m := Metrics{
		ProjectID:  projectID,
		WindowDays: days,
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByType:     make(map[string]int),
	}
	var resolvedCount int
	var resolutionHoursSum float64
	for _, t := range all {
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		m.TotalTickets++
		m.ByStatus[string(t.Status)]++
		m.ByPriority[t.Priority]++
		m.ByType[t.Type]++

		open := !Status(t.Status).terminal()
		if open && t.Priority == "critical" {
			m.CriticalOpen++
		}
		if open && c.now().Sub(t.UpdatedAt) > 7*24*time.Hour {
			m.OverdueOpen++
		}
		if t.ResolvedAt != nil {
			resolvedCount++
			resolutionHoursSum += t.ResolvedAt.Sub(t.CreatedAt).Hours()
		}
	}
	if resolvedCount > 0 {
		m.AvgResolutionHours = resolutionHoursSum / float64(resolvedCount)
	}

	return map[string]any{
		"project_id":           m.ProjectID,
		"window_days":          m.WindowDays,
		"total_tickets":        m.TotalTickets,
		"by_status":            m.ByStatus,
		"by_priority":          m.ByPriority,
		"by_type":              m.ByType,
		"avg_resolution_hours": m.AvgResolutionHours,
		"critical_open":        m.CriticalOpen,
		"overdue_open":         m.OverdueOpen,
	}, nil
}

// ListTickets returns every ticket for a project as admin-API-shaped maps,
// sorted oldest first.
func (c *Coordinator) ListTickets(ctx context.Context, projectID string) ([]map[string]any, error) {
	all, err := c.board.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(all))
	for _, t := range all {
		out = append(out, ticketToMap(t))
	}
	return out, nil
}

func ticketToMap(t Ticket) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"project_id":  t.ProjectID,
		"title":       t.Title,
		"description": t.Description,
		"type":        t.Type,
		"priority":    t.Priority,
		"status":      string(t.Status),
		"reporter":    t.Reporter,
		"memory_id":   t.MemoryID,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
}

func commentToMap(c Comment) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"ticket_id":  c.TicketID,
		"text":       c.Text,
		"author":     c.Author,
		"memory_id":  c.MemoryID,
		"created_at": c.CreatedAt,
	}
}
