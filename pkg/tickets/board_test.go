package tickets

import (
	"context"
	"testing"
)

func TestMemoryBoardGetUnknownTicket(t *testing.T) {
	b := NewMemoryBoard()
	if _, err := b.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown ticket id")
	}
}

func TestMemoryBoardListFiltersByProject(t *testing.T) {
	b := NewMemoryBoard()
	ctx := context.Background()
	if _, err := b.Create(ctx, Ticket{ProjectID: "a", Title: "one"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Create(ctx, Ticket{ProjectID: "b", Title: "two"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	onlyA, err := b.List(ctx, "a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].ProjectID != "a" {
		t.Fatalf("expected one ticket for project a, got %+v", onlyA)
	}

	all, err := b.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tickets total, got %d", len(all))
	}
}

func TestMemoryBoardAddCommentUnknownTicket(t *testing.T) {
	b := NewMemoryBoard()
	if _, err := b.AddComment(context.Background(), Comment{TicketID: "missing", Text: "x"}); err == nil {
		t.Fatalf("expected error for comment on unknown ticket")
	}
}

func TestMemoryBoardCommentsOrdering(t *testing.T) {
	b := NewMemoryBoard()
	ctx := context.Background()
	ticket, err := b.Create(ctx, Ticket{ProjectID: "a", Title: "one"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.AddComment(ctx, Comment{TicketID: ticket.ID, Text: "first"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := b.AddComment(ctx, Comment{TicketID: ticket.ID, Text: "second"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	comments, err := b.Comments(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if len(comments) != 2 || comments[0].Text != "first" || comments[1].Text != "second" {
		t.Fatalf("unexpected comment order: %+v", comments)
	}
}
