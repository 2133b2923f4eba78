package memory

import (
	"context"
	"time"

	"go.mau.fi/util/ptr"
)

// Scope is the visibility of a memory item.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
	ScopeMachine Scope = "machine"
	ScopeAgent   Scope = "agent"
)

// Category is the canonical memory category enum. External implementations
// may extend it; the store does not reject unknown categories on write.
type Category string

const (
	CategoryGlobal          Category = "global"
	CategoryProject         Category = "project"
	CategoryAgent           Category = "agent"
	CategoryInfrastructure  Category = "infrastructure"
	CategoryIncidents       Category = "incidents"
	CategoryMonitoring      Category = "monitoring"
	CategoryRunbooks        Category = "runbooks"
	CategorySecurity        Category = "security"
	CategoryTickets         Category = "tickets"
	CategoryDirectives      Category = "directives"
	CategoryConfigSnapshots Category = "config_snapshots"
	CategoryConfigDiffs     Category = "config_diffs"
	CategoryConfigAlerts    Category = "config_alerts"
	CategoryBroadcasts      Category = "broadcasts"
)

// MemoryItem is the unit of storage in the collective memory store.
type MemoryItem struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Category       Category       `json:"category"`
	Scope          Scope          `json:"scope"`
	MachineID      string         `json:"machine_id"`
	AgentID        string         `json:"agent_id,omitempty"`
	Project        string         `json:"project,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Context        string         `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Embedding      []float64      `json:"-"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	ContentHash    string         `json:"content_hash"`
	Deleted        bool           `json:"-"`
}

// Collection is the logical grouping of memory items sharing one category.
// One collection exists per category; a memory exists in exactly one
// collection by construction (its Category field selects it).
type Collection struct {
	Category  Category
	Dimension int
}

// StoreInput is the argument set for Store.
type StoreInput struct {
	Content   string
	Category  Category
	Scope     Scope
	Tags      []string
	Metadata  map[string]any
	Context   string
	MachineID string
	AgentID   string
	Project   string
}

// SearchQuery is the argument set for Search.
type SearchQuery struct {
	Query            string
	Category         Category
	Scope            Scope
	IncludeGlobal    bool
	MachineFilterIn  []string
	MachineFilterOut []string
	UserID           string
	Semantic         bool
	Limit            int
	Offset           int
}

// RecentQuery is the argument set for Recent.
type RecentQuery struct {
	Hours    int
	Category Category
	UserID   string
	Limit    int
}

// Page is a stably-paginated result set.
type Page struct {
	Items    []MemoryItem `json:"items"`
	Total    int          `json:"total"`
	HasMore  bool         `json:"has_more"`
	Degraded bool         `json:"degraded,omitempty"`
}

// Store is the contract the built-in memory tools are written against.
type Store interface {
	Store(ctx context.Context, in StoreInput) (string, error)
	Retrieve(ctx context.Context, id string) (*MemoryItem, error)
	Search(ctx context.Context, q SearchQuery) (Page, error)
	Recent(ctx context.Context, q RecentQuery) ([]MemoryItem, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// EmbeddingProvider produces vector embeddings for queries and batches of
// documents, L2-normalized so cosine similarity reduces to a dot product.
type EmbeddingProvider interface {
	ID() string
	Model() string
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// RemoteConfig configures the "openai" embedding provider.
type RemoteConfig struct {
	BaseURL string            `json:"base_url"`
	APIKey  string            `json:"api_key"`
	Model   string            `json:"model"`
	Headers map[string]string `json:"headers"`
}

// LocalConfig configures the "local" embedding provider.
type LocalConfig struct {
	BaseURL string            `json:"base_url"`
	APIKey  string            `json:"api_key"`
	Model   string            `json:"model"`
	Headers map[string]string `json:"headers"`
}

// HybridConfig controls the vector/keyword merge weights used by Search
// when semantic search is requested and an embedder is configured. Enabled
// is a pointer so an absent JSON key defaults to on, while an explicit
// `"enabled": false` can still turn off blending without touching the
// weights.
type HybridConfig struct {
	Enabled             *bool   `json:"enabled"`
	VectorWeight        float64 `json:"vector_weight"`
	TextWeight          float64 `json:"text_weight"`
	CandidateMultiplier int     `json:"candidate_multiplier"`
}

// isEnabled reports whether hybrid blending is active, defaulting to true
// when unset.
func (c HybridConfig) isEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

func (c HybridConfig) WithDefaults() HybridConfig {
	if c.Enabled == nil {
		c.Enabled = ptr.Ptr(true)
	}
	if c.VectorWeight == 0 && c.TextWeight == 0 {
		c.VectorWeight = 0.7
		c.TextWeight = 0.3
	}
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = 4
	}
	return c
}

// QueryConfig holds search-time defaults.
type QueryConfig struct {
	MaxResults int          `json:"max_results"`
	MinScore   float64      `json:"min_score"`
	Hybrid     HybridConfig `json:"hybrid"`
}

func (c QueryConfig) WithDefaults() QueryConfig {
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	c.Hybrid = c.Hybrid.WithDefaults()
	return c
}

// ResolvedConfig is the fully-defaulted memory section of the hub config.
type ResolvedConfig struct {
	Provider string       `json:"provider"`
	Remote   RemoteConfig `json:"remote"`
	Local    LocalConfig  `json:"local"`
	Query    QueryConfig  `json:"query"`
	DBPath   string       `json:"db_path"`
}

func (c ResolvedConfig) WithDefaults() ResolvedConfig {
	if c.Provider == "" {
		c.Provider = "none"
	}
	if c.DBPath == "" {
		c.DBPath = "memory.db"
	}
	c.Query = c.Query.WithDefaults()
	return c
}

// ProviderStatus reports which embedder is active and whether it is a
// fallback from a configured but unavailable provider.
type ProviderStatus struct {
	Provider string
	Model    string
	Fallback *FallbackStatus
}

type FallbackStatus struct {
	From   string `json:"from,omitempty"`
	Reason string `json:"reason,omitempty"`
}
