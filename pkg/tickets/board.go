package tickets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

// BoardClient is the thin CRUD interface the coordinator treats the
// external board as. A real deployment would implement this against an
// HTTP-backed issue tracker without touching the coordinator's FSM or
// memory-mirroring logic.
type BoardClient interface {
	Create(ctx context.Context, t Ticket) (Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
	Update(ctx context.Context, t Ticket) error
	List(ctx context.Context, projectID string) ([]Ticket, error)
	AddComment(ctx context.Context, c Comment) (Comment, error)
	Comments(ctx context.Context, ticketID string) ([]Comment, error)
}

// MemoryBoard is an in-process BoardClient backed by a mutex-guarded
// table, matching spec.md's framing of the board as an external
// collaborator reached through a narrow interface.
type MemoryBoard struct {
	mu       sync.RWMutex
	tickets  map[string]Ticket
	comments map[string][]Comment
	now      func() time.Time
}

func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{
		tickets:  make(map[string]Ticket),
		comments: make(map[string][]Comment),
		now:      time.Now,
	}
}

func (b *MemoryBoard) Create(ctx context.Context, t Ticket) (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = b.now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = StatusNew
	}
	b.tickets[t.ID] = t
	return t, nil
}

func (b *MemoryBoard) Get(ctx context.Context, id string) (Ticket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tickets[id]
	if !ok {
		return Ticket{}, hiveerr.New(hiveerr.KindBadArgument, "unknown ticket id %q", id)
	}
	return t, nil
}

func (b *MemoryBoard) Update(ctx context.Context, t Ticket) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tickets[t.ID]; !ok {
		return hiveerr.New(hiveerr.KindBadArgument, "unknown ticket id %q", t.ID)
	}
	t.UpdatedAt = b.now()
	b.tickets[t.ID] = t
	return nil
}

func (b *MemoryBoard) List(ctx context.Context, projectID string) ([]Ticket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Ticket, 0)
	for _, t := range b.tickets {
		if projectID == "" || t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *MemoryBoard) AddComment(ctx context.Context, c Comment) (Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tickets[c.TicketID]; !ok {
		return Comment{}, hiveerr.New(hiveerr.KindBadArgument, "unknown ticket id %q", c.TicketID)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = b.now()
	b.comments[c.TicketID] = append(b.comments[c.TicketID], c)
	return c, nil
}

func (b *MemoryBoard) Comments(ctx context.Context, ticketID string) ([]Comment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Comment, len(b.comments[ticketID]))
	copy(out, b.comments[ticketID])
	return out, nil
}
