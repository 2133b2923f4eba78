package memory

import (
	"math"
	"sort"
	"strings"
)

// matchesFilters applies the search query's category/scope/machine
// predicates. Filtering happens before top-k selection, per the store's
// ranking contract.
func matchesFilters(item MemoryItem, q SearchQuery) bool {
	if item.Deleted {
		return false
	}
	if q.Category != "" && item.Category != q.Category {
		return false
	}
	if q.Scope != "" && item.Scope != q.Scope {
		if !(q.IncludeGlobal && item.Scope == ScopeGlobal) {
			return false
		}
	}
	if len(q.MachineFilterIn) > 0 && !contains(q.MachineFilterIn, item.MachineID) {
		return false
	}
	if len(q.MachineFilterOut) > 0 && contains(q.MachineFilterOut, item.MachineID) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func keywordScore(item MemoryItem, query string) float64 {
	if query == "" {
		return 0
	}
	q := strings.ToLower(query)
	hay := strings.ToLower(item.Content + " " + strings.Join(item.Tags, " "))
	if !strings.Contains(hay, q) {
		return 0
	}
	// Longer matches relative to content length score higher; a crude
	// substring-density proxy for a real BM25 index.
	return float64(len(q)) / float64(len(hay)+1)
}

type scoredItem struct {
	item  MemoryItem
	score float64
}

// rankCandidates scores and stably sorts candidates per the store's tie
// break: score, then created_at descending, then id lexicographic.
func rankCandidates(candidates []MemoryItem, q SearchQuery, embedder EmbeddingProvider, queryVec []float64, hybrid HybridConfig) ([]scoredItem, bool) {
	degraded := false
	useSemantic := q.Semantic && hybrid.isEnabled() && embedder != nil && embedder.ID() != "none" && len(queryVec) > 0

	scored := make([]scoredItem, 0, len(candidates))
	for _, item := range candidates {
		var score float64
		switch {
		case useSemantic && item.EmbeddingModel == embedder.Model() && len(item.Embedding) > 0:
			vecScore := cosineSimilarity(queryVec, item.Embedding)
			txtScore := keywordScore(item, q.Query)
			score = hybrid.VectorWeight*vecScore + hybrid.TextWeight*txtScore
		default:
			if q.Semantic {
				// Either no embedder, or this item predates the active
				// embedding model: fall back to keyword-only for it and
				// flag the page as degraded.
				degraded = degraded || q.Semantic
			}
			score = keywordScore(item, q.Query)
		}
		scored = append(scored, scoredItem{item: item, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if math.Abs(scored[i].score-scored[j].score) > 1e-6 {
			return scored[i].score > scored[j].score
		}
		if !scored[i].item.CreatedAt.Equal(scored[j].item.CreatedAt) {
			return scored[i].item.CreatedAt.After(scored[j].item.CreatedAt)
		}
		return scored[i].item.ID < scored[j].item.ID
	})
	return scored, degraded
}

// Truncate cuts s on a line boundary at or beyond ratio*limit (and within
// limit) when s exceeds limit characters, falling back to a hard cut at
// ratio*limit when no newline lies in that range, and appends a notice
// recommending pagination. This is
// the single truncation filter every serialized tool result passes through.
func Truncate(s string, limit int) string {
	const ratio = 0.8
	if limit <= 0 {
		limit = 80000
	}
	if len(s) <= limit {
		return s
	}
	cut := int(float64(limit) * ratio)
	if cut <= 0 {
		cut = limit
	}
	if cut > len(s) {
		cut = len(s)
	}
	idx := strings.LastIndexByte(s[:limit], '\n')
	if idx < cut {
		idx = cut
	}
	notice := "\n\n[output truncated; narrow your query or use limit/offset to paginate]"
	return s[:idx] + notice
}
