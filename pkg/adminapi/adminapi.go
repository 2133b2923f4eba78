// Package adminapi mounts the operator-facing HTTP routes enumerated in
// the hub's external interface: thin wrappers around the same registry,
// memory store, bridge manager, ticket coordinator, and config backup
// engine methods the builtin tool catalogue calls, gated by a valid
// "admin" bearer token.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/auth"
	"github.com/lancejames221b/agent-hivemind/pkg/bridge"
	"github.com/lancejames221b/agent-hivemind/pkg/configbackup"
	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
	"github.com/lancejames221b/agent-hivemind/pkg/tickets"
)

// Deps wires the admin routes to the hub's live services.
type Deps struct {
	Auth    *auth.Manager
	Memory  memory.Store
	Agents  *agents.Registry
	Bus     *agents.Bus
	Bridges *bridge.Manager
	Tickets *tickets.Coordinator
	Backups *configbackup.Engine
}

// Mount registers every admin route onto mux, each wrapped in
// Auth.RequireRole(auth.RoleAdmin, ...).
func Mount(mux *http.ServeMux, deps Deps) {
	a := &api{deps: deps}
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return deps.Auth.RequireRole(auth.RoleAdmin, h)
	}

	mux.HandleFunc("/admin/api/agents", guard(a.handleAgents))
	mux.HandleFunc("/admin/api/memories", guard(a.handleMemories))
	mux.HandleFunc("/admin/api/memories/search", guard(a.handleMemorySearch))
	mux.HandleFunc("/admin/api/bridges", guard(a.handleBridges))
	mux.HandleFunc("/admin/api/broadcasts", guard(a.handleBroadcasts))
	mux.HandleFunc("/admin/api/tickets", guard(a.handleTickets))
	mux.HandleFunc("/admin/api/backups/systems", guard(a.handleBackupSystems))
	mux.HandleFunc("/admin/api/backups/snapshots", guard(a.handleBackupSnapshots))
	mux.HandleFunc("/admin/api/backups/drift", guard(a.handleBackupDrift))
	mux.HandleFunc("/admin/api/backups/alerts", guard(a.handleBackupAlerts))
}

type api struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	kind := hiveerr.KindOf(err)
	writeJSON(w, hiveerr.HTTPStatus(kind), map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return hiveerr.New(hiveerr.KindBadArgument, "missing request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return hiveerr.Wrap(hiveerr.KindBadArgument, err, "malformed request body")
	}
	return nil
}

// --- agents ---

func (a *api) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := agents.RosterQuery{
			IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
			Limit:           atoiOr(r.URL.Query().Get("limit"), 0),
			Offset:          atoiOr(r.URL.Query().Get("offset"), 0),
		}
		writeJSON(w, http.StatusOK, a.deps.Agents.Roster(q))
	case http.MethodPost:
		var in struct {
			AgentID      string         `json:"agent_id"`
			MachineID    string         `json:"machine_id"`
			Role         string         `json:"role"`
			Capabilities []string       `json:"capabilities"`
			Metadata     map[string]any `json:"metadata"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		agent, err := a.deps.Agents.Register(r.Context(), agents.RegisterInput{
			AgentID:      in.AgentID,
			MachineID:    in.MachineID,
			Role:         in.Role,
			Capabilities: in.Capabilities,
			Metadata:     in.Metadata,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, agent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- memories ---

func (a *api) handleMemories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, hiveerr.New(hiveerr.KindBadArgument, "id query parameter is required"))
			return
		}
		item, err := a.deps.Memory.Retrieve(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPost:
		var in struct {
			Content   string         `json:"content"`
			Category  string         `json:"category"`
			Scope     string         `json:"scope"`
			Tags      []string       `json:"tags"`
			Metadata  map[string]any `json:"metadata"`
			Context   string         `json:"context"`
			MachineID string         `json:"machine_id"`
			AgentID   string         `json:"agent_id"`
			Project   string         `json:"project"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		id, err := a.deps.Memory.Store(r.Context(), memory.StoreInput{
			Content:   in.Content,
			Category:  memory.Category(in.Category),
			Scope:     memory.Scope(in.Scope),
			Tags:      in.Tags,
			Metadata:  in.Metadata,
			Context:   in.Context,
			MachineID: in.MachineID,
			AgentID:   in.AgentID,
			Project:   in.Project,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, hiveerr.New(hiveerr.KindBadArgument, "id query parameter is required"))
			return
		}
		if err := a.deps.Memory.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *api) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := memory.SearchQuery{
		Query:         r.URL.Query().Get("q"),
		Category:      memory.Category(r.URL.Query().Get("category")),
		Scope:         memory.Scope(r.URL.Query().Get("scope")),
		IncludeGlobal: r.URL.Query().Get("include_global") == "true",
		Semantic:      r.URL.Query().Get("semantic") == "true",
		Limit:         atoiOr(r.URL.Query().Get("limit"), 20),
		Offset:        atoiOr(r.URL.Query().Get("offset"), 0),
	}
	page, err := a.deps.Memory.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// --- bridges ---

func (a *api) handleBridges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := a.deps.Bridges.ListBridges(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var cfg bridge.ServerConfig
		if err := decodeBody(r, &cfg); err != nil {
			writeError(w, err)
			return
		}
		if err := a.deps.Bridges.RegisterServer(r.Context(), cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"server_id": cfg.ServerID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- broadcasts ---

// handleBroadcasts is a GET-only polling surface over the bus's replay
// log, not a push subscription: operator tooling like hivectl can poll it
// on an interval without holding a streaming connection open.
func (a *api) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	role := r.URL.Query().Get("role")

	batch := a.deps.Bus.ReplaySince(after)
	if role != "" {
		filtered := make([]agents.Broadcast, 0, len(batch))
		for _, b := range batch {
			if len(b.TargetRoles) == 0 || containsRole(b.TargetRoles, role) {
				filtered = append(filtered, b)
			}
		}
		batch = filtered
	}
	writeJSON(w, http.StatusOK, batch)
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// --- tickets ---

func (a *api) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := a.deps.Tickets.ListTickets(r.Context(), r.URL.Query().Get("project_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in struct {
			ProjectID   string `json:"project_id"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Type        string `json:"type"`
			Priority    string `json:"priority"`
			Reporter    string `json:"reporter"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		t, err := a.deps.Tickets.CreateTicket(r.Context(), in.ProjectID, in.Title, in.Description, in.Type, in.Priority, in.Reporter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		var in struct {
			TicketID string `json:"ticket_id"`
			Status   string `json:"status"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		t, err := a.deps.Tickets.UpdateStatus(r.Context(), in.TicketID, in.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- config backup ---

func (a *api) handleBackupSystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := a.deps.Backups.ListSystems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *api) handleBackupSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SystemID   string   `json:"system_id"`
		ConfigType string   `json:"config_type"`
		Content    string   `json:"content"`
		FilePath   string   `json:"file_path"`
		AgentID    string   `json:"agent_id"`
		Tags       []string `json:"tags"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	id, err := a.deps.Backups.CreateSnapshot(r.Context(), in.SystemID, in.ConfigType, in.Content, in.FilePath, in.AgentID, in.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"snapshot_id": id})
}

func (a *api) handleBackupDrift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	hours := atoiOr(r.URL.Query().Get("hours_back"), 24)
	drift, err := a.deps.Backups.DetectDrift(r.Context(), r.URL.Query().Get("system_id"), hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

func (a *api) handleBackupAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		alerts, err := a.deps.Backups.GetAlerts(r.Context(), r.URL.Query().Get("system_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alerts)
	case http.MethodPost:
		// Runs a drift check for a system on demand and returns the
		// qualifying diffs. It creates no alerts itself: alerts are
		// created by CreateSnapshot when it records a high or critical
		// diff.
		var in struct {
			SystemID  string `json:"system_id"`
			HoursBack int    `json:"hours_back"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		drift, err := a.deps.Backups.DetectDrift(r.Context(), in.SystemID, in.HoursBack)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, drift)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
