package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memory_items (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	scope TEXT NOT NULL,
	machine_id TEXT NOT NULL,
	agent_id TEXT,
	project TEXT,
	tags TEXT,
	metadata TEXT,
	context TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	embedding TEXT,
	embedding_model TEXT,
	content_hash TEXT NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memory_items_category ON memory_items(category);
CREATE INDEX IF NOT EXISTS idx_memory_items_hash ON memory_items(content_hash);
CREATE INDEX IF NOT EXISTS idx_memory_items_created ON memory_items(created_at);
`

// SQLiteStore is the production Store backend: a relational table holding
// item metadata and a JSON-serialized embedding column, with an in-process
// cosine-similarity scan over a category's candidate rows at query time.
// No example in the corpus wires a native vector index to go-sqlite3, so
// top-k ranking happens in Go after the SQL predicate filters narrow the
// candidate set, keeping the tie-break semantics in rank.go exact.
type SQLiteStore struct {
	db       *sql.DB
	embedder EmbeddingProvider
	hybrid   HybridConfig
}

func OpenSQLiteStore(path string, embedder EmbeddingProvider, hybrid HybridConfig) (*SQLiteStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder must not be nil")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying memory schema: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder, hybrid: hybrid.WithDefaults()}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Store(ctx context.Context, in StoreInput) (string, error) {
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("%w: content must not be empty", hiveerr.ErrBadArgument)
	}
	hash := ContentHash(in.Content, in.Category, in.MachineID)

	var prevID string
	var prevCreated int64
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM memory_items WHERE content_hash = ? AND deleted = 0 ORDER BY created_at DESC LIMIT 1`,
		hash,
	)
	if err := row.Scan(&prevID, &prevCreated); err == nil {
		if time.Since(time.UnixMilli(prevCreated)) < 24*time.Hour {
			return prevID, nil
		}
	} else if err != sql.ErrNoRows {
		return "", hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "checking dedup window")
	}

	var embedding []float64
	if vec, err := s.embedder.EmbedQuery(ctx, in.Content); err == nil {
		embedding = vec
	}

	now := time.Now()
	id := xid.New().String()
	tagsJSON, _ := json.Marshal(in.Tags)
	metaJSON, _ := json.Marshal(in.Metadata)
	embJSON, _ := json.Marshal(embedding)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_items
			(id, content, category, scope, machine_id, agent_id, project, tags, metadata, context,
			 created_at, updated_at, embedding, embedding_model, content_hash, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		id, in.Content, string(in.Category), string(in.Scope), in.MachineID, in.AgentID, in.Project,
		string(tagsJSON), string(metaJSON), in.Context,
		now.UnixMilli(), now.UnixMilli(), string(embJSON), s.embedder.Model(), hash,
	)
	if err != nil {
		return "", hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "inserting memory item")
	}
	return id, nil
}

func (s *SQLiteStore) Retrieve(ctx context.Context, id string) (*MemoryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, scope, machine_id, agent_id, project, tags, metadata, context,
		       created_at, updated_at, embedding, embedding_model, content_hash, deleted
		FROM memory_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "retrieving memory item")
	}
	if item.Deleted {
		return nil, nil
	}
	return item, nil
}

func (s *SQLiteStore) Search(ctx context.Context, q SearchQuery) (Page, error) {
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

	where := []string{"deleted = 0"}
	args := []any{}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, scope, machine_id, agent_id, project, tags, metadata, context,
		       created_at, updated_at, embedding, embedding_model, content_hash, deleted
		FROM memory_items WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return Page{}, hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "searching memory items")
	}
	defer rows.Close()

	candidates := make([]MemoryItem, 0, 256)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return Page{}, hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "scanning memory item")
		}
		if matchesFilters(*item, q) {
			candidates = append(candidates, *item)
		}
	}

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

	return Page{Items: items, Total: total, HasMore: end < total, Degraded: degraded}, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, q RecentQuery) ([]MemoryItem, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	where := []string{"deleted = 0"}
	args := []any{}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	if q.Hours > 0 {
		cutoff := time.Now().Add(-time.Duration(q.Hours) * time.Hour).UnixMilli()
		where = append(where, "created_at >= ?")
		args = append(args, cutoff)
	}
	args = append(args, q.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, scope, machine_id, agent_id, project, tags, metadata, context,
		       created_at, updated_at, embedding, embedding_model, content_hash, deleted
		FROM memory_items WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "querying recent memory items")
	}
	defer rows.Close()

	items := make([]MemoryItem, 0, q.Limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "scanning memory item")
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memory_items SET deleted = 1, updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindMemoryStoreUnavailable, err, "deleting memory item")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*MemoryItem, error) {
	var item MemoryItem
	var category, scope, tagsJSON, metaJSON, embJSON string
	var createdAt, updatedAt int64
	var deleted int
	var agentID, project, context, embModel sql.NullString

	if err := row.Scan(&item.ID, &item.Content, &category, &scope, &item.MachineID, &agentID, &project,
		&tagsJSON, &metaJSON, &context, &createdAt, &updatedAt, &embJSON, &embModel, &item.ContentHash, &deleted); err != nil {
		return nil, err
	}
	item.Category = Category(category)
	item.Scope = Scope(scope)
	item.AgentID = agentID.String
	item.Project = project.String
	item.Context = context.String
	item.EmbeddingModel = embModel.String
	item.CreatedAt = time.UnixMilli(createdAt)
	item.UpdatedAt = time.UnixMilli(updatedAt)
	item.Deleted = deleted != 0
	_ = json.Unmarshal([]byte(tagsJSON), &item.Tags)
	_ = json.Unmarshal([]byte(metaJSON), &item.Metadata)
	_ = json.Unmarshal([]byte(embJSON), &item.Embedding)
	return &item, nil
}
