package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

// InMemoryStore is a mutex-guarded, process-local Store implementation used
// by tests; cmd/hubd always opens the SQLite store.
type InMemoryStore struct {
	mu       sync.RWMutex
	items    map[string]MemoryItem
	byHash   map[string]string // contentHash -> id, for the 24h dedup window
	embedder EmbeddingProvider
	hybrid   HybridConfig
	now      func() time.Time
}

func NewInMemoryStore(embedder EmbeddingProvider, hybrid HybridConfig) *InMemoryStore {
	if embedder == nil {
		panic("memory: embedder must not be nil")
	}
	return &InMemoryStore{
		items:    make(map[string]MemoryItem),
		byHash:   make(map[string]string),
		embedder: embedder,
		hybrid:   hybrid.WithDefaults(),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Store(ctx context.Context, in StoreInput) (string, error) {
	if in.Content == "" {
		return "", fmt.Errorf("%w: content must not be empty", hiveerr.ErrBadArgument)
	}
	hash := ContentHash(in.Content, in.Category, in.MachineID)

	s.mu.Lock()
	if prevID, ok := s.byHash[hash]; ok {
		if prev, ok2 := s.items[prevID]; ok2 && s.now().Sub(prev.CreatedAt) < 24*time.Hour && !prev.Deleted {
			s.mu.Unlock()
			return prevID, nil
		}
	}
	s.mu.Unlock()

	var embedding []float64
	model := s.embedder.Model()
	if vec, err := s.embedder.EmbedQuery(ctx, in.Content); err == nil {
		embedding = vec
	}

	now := s.now()
	id := xid.New().String()
	item := MemoryItem{
		ID:             id,
		Content:        in.Content,
		Category:       in.Category,
		Scope:          in.Scope,
		MachineID:      in.MachineID,
		AgentID:        in.AgentID,
		Project:        in.Project,
		Tags:           in.Tags,
		Metadata:       in.Metadata,
		Context:        in.Context,
		CreatedAt:      now,
		UpdatedAt:      now,
		Embedding:      embedding,
		EmbeddingModel: model,
		ContentHash:    hash,
	}

	s.mu.Lock()
	s.items[id] = item
	s.byHash[hash] = id
	s.mu.Unlock()
	return id, nil
}

func (s *InMemoryStore) Retrieve(ctx context.Context, id string) (*MemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || item.Deleted {
		return nil, nil
	}
	return &item, nil
}

func (s *InMemoryStore) Search(ctx context.Context, q SearchQuery) (Page, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	var queryVec []float64
	degraded := false
	if q.Semantic {
		if s.embedder.ID() == "none" {
			degraded = true
		} else if vec, err := s.embedder.EmbedQuery(ctx, q.Query); err == nil {
			queryVec = vec
		} else {
			degraded = true
		}
	}

	s.mu.RLock()
	candidates := make([]MemoryItem, 0, len(s.items))
	for _, item := range s.items {
		if matchesFilters(item, q) {
			candidates = append(candidates, item)
		}
	}
	s.mu.RUnlock()

	scored, moreDegraded := rankCandidates(candidates, q, s.embedder, queryVec, s.hybrid)
	degraded = degraded || moreDegraded

	total := len(scored)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	items := make([]MemoryItem, 0, end-start)
	for _, sc := range scored[start:end] {
		items = append(items, sc.item)
	}

	return Page{
		Items:    items,
		Total:    total,
		HasMore:  end < total,
		Degraded: degraded,
	}, nil
}

func (s *InMemoryStore) Recent(ctx context.Context, q RecentQuery) ([]MemoryItem, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	cutoff := s.now().Add(-time.Duration(q.Hours) * time.Hour)
	if q.Hours <= 0 {
		cutoff = time.Time{}
	}

	s.mu.RLock()
	candidates := make([]MemoryItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Deleted {
			continue
		}
		if q.Category != "" && item.Category != q.Category {
			continue
		}
		if !cutoff.IsZero() && item.CreatedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, item)
	}
	s.mu.RUnlock()

	sortByCreatedDesc(candidates)
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil
	}
	item.Deleted = true
	s.items[id] = item
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func sortByCreatedDesc(items []MemoryItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].CreatedAt.After(items[j-1].CreatedAt); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
