package embedding

import "context"

// NewNoneProvider returns a provider that produces no vectors. Search
// degrades to keyword-only matching when this provider is active, per the
// collective memory store's failure semantics for a missing/unavailable
// embedder.
func NewNoneProvider() *Provider {
	return &Provider{
		id:    "none",
		model: "",
		embedQuery: func(ctx context.Context, text string) ([]float64, error) {
			return nil, nil
		},
		embedBatch: func(ctx context.Context, texts []string) ([][]float64, error) {
			return nil, nil
		},
	}
}
