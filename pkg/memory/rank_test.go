package memory

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/util/ptr"
)

func TestHybridConfigIsEnabledDefaultsTrue(t *testing.T) {
	var c HybridConfig
	if !c.isEnabled() {
		t.Fatalf("expected unset Enabled to default to true")
	}
	c.Enabled = ptr.Ptr(false)
	if c.isEnabled() {
		t.Fatalf("expected explicit false to disable hybrid blending")
	}
	c.Enabled = ptr.Ptr(true)
	if !c.isEnabled() {
		t.Fatalf("expected explicit true to enable hybrid blending")
	}
}

func TestHybridConfigWithDefaultsPopulatesEnabled(t *testing.T) {
	c := HybridConfig{}.WithDefaults()
	if c.Enabled == nil || !*c.Enabled {
		t.Fatalf("expected WithDefaults to populate Enabled=true, got %+v", c.Enabled)
	}
	if c.VectorWeight != 0.7 || c.TextWeight != 0.3 {
		t.Fatalf("expected default weights 0.7/0.3, got %v/%v", c.VectorWeight, c.TextWeight)
	}
}

func TestRankCandidatesSkipsSemanticWhenHybridDisabled(t *testing.T) {
	now := time.Now()
	items := []MemoryItem{
		{ID: "a", Content: "alpha beta", CreatedAt: now, EmbeddingModel: "m", Embedding: []float64{1, 0}},
		{ID: "b", Content: "gamma delta", CreatedAt: now, EmbeddingModel: "m", Embedding: []float64{0, 1}},
	}
	embedder := &fakeEmbedder{id: "fake", model: "m"}
	q := SearchQuery{Semantic: true, Query: "alpha"}

	hybridOn := HybridConfig{Enabled: ptr.Ptr(true), VectorWeight: 0.7, TextWeight: 0.3}
	scoredOn, _ := rankCandidates(items, q, embedder, []float64{1, 0}, hybridOn)
	if scoredOn[0].item.ID != "a" {
		t.Fatalf("expected vector-aligned item 'a' to rank first when hybrid enabled, got %s", scoredOn[0].item.ID)
	}

	hybridOff := HybridConfig{Enabled: ptr.Ptr(false)}
	scoredOff, degraded := rankCandidates(items, q, embedder, []float64{1, 0}, hybridOff)
	if !degraded {
		t.Fatalf("expected semantic query to report degraded when hybrid blending is disabled")
	}
	if scoredOff[0].item.ID != "a" {
		t.Fatalf("expected keyword-only fallback to still rank the matching item first, got %s", scoredOff[0].item.ID)
	}
}

func TestMatchesFiltersScopeAndMachine(t *testing.T) {
	item := MemoryItem{Scope: ScopeProject, MachineID: "m1"}
	if !matchesFilters(item, SearchQuery{Scope: ScopeProject}) {
		t.Fatalf("expected matching scope to pass")
	}
	if matchesFilters(item, SearchQuery{Scope: ScopeMachine}) {
		t.Fatalf("expected mismatched scope to fail")
	}
	if matchesFilters(item, SearchQuery{Scope: ScopeMachine, IncludeGlobal: true}) {
		t.Fatalf("expected IncludeGlobal not to rescue a non-global mismatched scope")
	}
	global := MemoryItem{Scope: ScopeGlobal}
	if !matchesFilters(global, SearchQuery{Scope: ScopeMachine, IncludeGlobal: true}) {
		t.Fatalf("expected IncludeGlobal to admit a global-scoped item")
	}
	if !matchesFilters(item, SearchQuery{MachineFilterIn: []string{"m1"}}) {
		t.Fatalf("expected machine_filter_in match to pass")
	}
	if matchesFilters(item, SearchQuery{MachineFilterOut: []string{"m1"}}) {
		t.Fatalf("expected machine_filter_out match to exclude the item")
	}
}

type fakeEmbedder struct {
	id    string
	model string
}

func (f *fakeEmbedder) ID() string    { return f.id }
func (f *fakeEmbedder) Model() string { return f.model }
func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	return nil, nil
}
func (f *fakeEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float64, error) {
	return nil, nil
}

var _ EmbeddingProvider = (*fakeEmbedder)(nil)
