package tickets

import (
	"context"
	"testing"

	"github.com/lancejames221b/agent-hivemind/pkg/memory"
)

type fakeMemory struct {
	stored []memory.StoreInput
}

func (f *fakeMemory) Store(ctx context.Context, in memory.StoreInput) (string, error) {
	f.stored = append(f.stored, in)
	return "mem-" + string(in.Category), nil
}
func (f *fakeMemory) Retrieve(ctx context.Context, id string) (*memory.MemoryItem, error) {
	return nil, nil
}
func (f *fakeMemory) Search(ctx context.Context, q memory.SearchQuery) (memory.Page, error) {
	return memory.Page{}, nil
}
func (f *fakeMemory) Recent(ctx context.Context, q memory.RecentQuery) ([]memory.MemoryItem, error) {
	return nil, nil
}
func (f *fakeMemory) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeMemory) Close() error                                { return nil }

func newTestCoordinator() (*Coordinator, *fakeMemory) {
	mem := &fakeMemory{}
	return NewCoordinator(NewMemoryBoard(), mem), mem
}

func TestCreateTicketMirrorsMemory(t *testing.T) {
	c, mem := newTestCoordinator()
	ctx := context.Background()

	ticket, err := c.CreateTicket(ctx, "proj1", "fix the thing", "details", "bug", "high", "alice")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket["status"] != string(StatusNew) {
		t.Fatalf("expected status new, got %v", ticket["status"])
	}
	if len(mem.stored) != 1 {
		t.Fatalf("expected one mirrored memory write, got %d", len(mem.stored))
	}
	if mem.stored[0].Category != memory.CategoryTickets {
		t.Fatalf("expected category tickets, got %v", mem.stored[0].Category)
	}
}

func TestUpdateStatusValidTransition(t *testing.T) {
	c, _ := newTestCoordinator()
	ctx := context.Background()

	ticket, err := c.CreateTicket(ctx, "proj1", "title", "", "task", "medium", "bob")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	id := ticket["id"].(string)

	updated, err := c.UpdateStatus(ctx, id, string(StatusInProgress))
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated["status"] != string(StatusInProgress) {
		t.Fatalf("expected in_progress, got %v", updated["status"])
	}
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	c, _ := newTestCoordinator()
	ctx := context.Background()

	ticket, _ := c.CreateTicket(ctx, "proj1", "title", "", "task", "medium", "bob")
	id := ticket["id"].(string)

	if _, err := c.UpdateStatus(ctx, id, string(StatusDone)); err == nil {
		t.Fatalf("expected new -> done to be rejected")
	}
}

func TestUpdateStatusFromTerminalRejected(t *testing.T) {
	c, _ := newTestCoordinator()
	ctx := context.Background()

	ticket, _ := c.CreateTicket(ctx, "proj1", "title", "", "task", "medium", "bob")
	id := ticket["id"].(string)

	if _, err := c.UpdateStatus(ctx, id, string(StatusInProgress)); err != nil {
		t.Fatalf("unexpected error moving to in_progress: %v", err)
	}
	if _, err := c.UpdateStatus(ctx, id, string(StatusReview)); err != nil {
		t.Fatalf("unexpected error moving to review: %v", err)
	}
	if _, err := c.UpdateStatus(ctx, id, string(StatusDone)); err != nil {
		t.Fatalf("unexpected error moving to done: %v", err)
	}
	if _, err := c.UpdateStatus(ctx, id, string(StatusInProgress)); err == nil {
		t.Fatalf("expected transition out of terminal state done to be rejected")
	}
}

func TestAddCommentCorrelatesMemoryID(t *testing.T) {
	c, mem := newTestCoordinator()
	ctx := context.Background()

	ticket, _ := c.CreateTicket(ctx, "proj1", "title", "", "task", "medium", "bob")
	id := ticket["id"].(string)

	comment, err := c.AddComment(ctx, id, "looking into it", "carol")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment["memory_id"] == "" {
		t.Fatalf("expected comment to carry a memory id")
	}
	if len(mem.stored) != 2 {
		t.Fatalf("expected create + comment to each mirror a memory, got %d", len(mem.stored))
	}
}

func TestGetMetricsAggregatesByStatus(t *testing.T) {
	c, _ := newTestCoordinator()
	ctx := context.Background()

	t1, _ := c.CreateTicket(ctx, "proj1", "t1", "", "bug", "critical", "a")
	t2, _ := c.CreateTicket(ctx, "proj1", "t2", "", "task", "low", "b")
	_, _ = c.UpdateStatus(ctx, t1["id"].(string), string(StatusInProgress))
	_ = t2

	metrics, err := c.GetMetrics(ctx, "proj1", 30)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if metrics["total_tickets"] != 2 {
		t.Fatalf("expected 2 total tickets, got %v", metrics["total_tickets"])
	}
	byStatus := metrics["by_status"].(map[string]int)
	if byStatus[string(StatusInProgress)] != 1 || byStatus[string(StatusNew)] != 1 {
		t.Fatalf("unexpected status breakdown: %+v", byStatus)
	}
	if metrics["critical_open"] != 1 {
		t.Fatalf("expected 1 critical open ticket, got %v", metrics["critical_open"])
	}
}

func TestCanTransitionMatrix(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusInProgress, true},
		{StatusNew, StatusDone, false},
		{StatusInProgress, StatusReview, true},
		{StatusReview, StatusDone, true},
		{StatusReview, StatusInProgress, true},
		{StatusBlocked, StatusInProgress, true},
		{StatusDone, StatusInProgress, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusNew, StatusCancelled, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
