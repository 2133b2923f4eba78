package transport

import (
	"encoding/json"
	"net/http"

	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

// HealthInfo is the payload GET /health reports.
type HealthInfo struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	MachineID  string `json:"machine_id"`
	SSLEnabled bool   `json:"ssl_enabled"`
}

// HandlerOption customizes the assembled mux.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	version    string
	machineID  string
	sslEnabled bool
	degraded   func() bool
}

// WithVersion sets the version string reported on /health.
func WithVersion(v string) HandlerOption {
	return func(c *handlerConfig) { c.version = v }
}

// WithMachineID sets the machine id reported on /health.
func WithMachineID(id string) HandlerOption {
	return func(c *handlerConfig) { c.machineID = id }
}

// WithSSLEnabled reports TLS status on /health.
func WithSSLEnabled(enabled bool) HandlerOption {
	return func(c *handlerConfig) { c.sslEnabled = enabled }
}

// WithDegradedCheck lets the composition root report a degraded health
// status (e.g. memory store unavailable) without this package importing
// every backend service.
func WithDegradedCheck(fn func() bool) HandlerOption {
	return func(c *handlerConfig) { c.degraded = fn }
}

// NewHandler assembles the session/transport HTTP surface: the SSE
// stream, message ingress, session recovery/info, and health.
func NewHandler(m *Manager, executor *tools.Executor, opts ...HandlerOption) http.Handler {
	cfg := &handlerConfig{version: "dev"}
	for _, opt := range opts {
		opt(cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", m.ServeSSE)
	mux.HandleFunc("/messages", m.HandleMessages(executor))
	mux.HandleFunc("/api/session/recover", m.handleRecover)
	mux.HandleFunc("/api/session/info", m.handleInfo)
	mux.HandleFunc("/health", cfg.handleHealth)
	return mux
}

func (m *Manager) handleRecover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		OldSessionID string `json:"old_session_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fresh := m.Recover(body.OldSessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"new_session_id": fresh.ID,
		"sse_url":        "/sse?session_id=" + fresh.ID,
	})
}

func (m *Manager) handleInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	session, ok := m.Get(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"known": false, "open_sessions": m.Count()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"known":         true,
		"state":         session.snapshotState(),
		"created_at":    session.CreatedAt,
		"last_activity": session.LastActivity,
		"open_sessions": m.Count(),
	})
}

func (c *handlerConfig) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if c.degraded != nil && c.degraded() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthInfo{
		Status:     status,
		Version:    c.version,
		MachineID:  c.machineID,
		SSLEnabled: c.sslEnabled,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
