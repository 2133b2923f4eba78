package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/auth"
	"github.com/lancejames221b/agent-hivemind/pkg/bridge"
	"github.com/lancejames221b/agent-hivemind/pkg/configbackup"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
	"github.com/lancejames221b/agent-hivemind/pkg/memory/embedding"
	"github.com/lancejames221b/agent-hivemind/pkg/tickets"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

func newTestDeps(t *testing.T) (Deps, string) {
	t.Helper()
	store := memory.NewInMemoryStore(embedding.NewNoneProvider(), memory.HybridConfig{})
	registry := agents.NewRegistry(store, "m1")
	bus := agents.NewBus(registry)
	bridgeMgr := bridge.NewManager(tools.NewRegistry(), zerolog.Nop())
	coordinator := tickets.NewCoordinator(tickets.NewMemoryBoard(), store)

	backupPath := filepath.Join(t.TempDir(), "backups.db")
	backupEngine, err := configbackup.Open(backupPath, configbackup.DefaultRiskConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("configbackup.Open: %v", err)
	}
	t.Cleanup(func() { _ = backupEngine.Close() })

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	authManager := auth.NewManager("test-secret", []auth.Credential{
		{Username: "admin", PasswordHash: hash, Role: auth.RoleAdmin},
	}, auth.DefaultTokenTTL)
	token, _, err := authManager.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	return Deps{
		Auth:    authManager,
		Memory:  store,
		Agents:  registry,
		Bus:     bus,
		Bridges: bridgeMgr,
		Tickets: coordinator,
		Backups: backupEngine,
	}, token
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	deps, token := newTestDeps(t)
	mux := http.NewServeMux()
	Mount(mux, deps)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, token
}

func authedRequest(t *testing.T, method, url, token, body string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAdminRoutesRejectMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/admin/api/agents")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestAgentsRouteRegistersAndListsAgents(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	postReq := authedRequest(t, http.MethodPost, srv.URL+"/admin/api/agents", token,
		`{"agent_id":"a1","role":"worker","machine_id":"m1","capabilities":["build"]}`)
	postReq.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(postReq)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 registering an agent, got %d", resp.StatusCode)
	}

	getResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/agents", token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	var page struct {
		Agents []struct {
			AgentID string `json:"agent_id"`
		} `json:"agents"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Agents[0].AgentID != "a1" {
		t.Fatalf("expected roster to contain agent 'a1', got %+v", page)
	}
}

func TestMemoriesRouteStoreRetrieveDelete(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	postReq := authedRequest(t, http.MethodPost, srv.URL+"/admin/api/memories", token,
		`{"content":"remember this","category":"fact","scope":"global"}`)
	resp, err := client.Do(postReq)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var stored struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if stored.ID == "" {
		t.Fatalf("expected a non-empty stored memory id")
	}

	getResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/memories?id="+stored.ID, token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 retrieving stored memory, got %d", getResp.StatusCode)
	}
	getResp.Body.Close()

	delResp, err := client.Do(authedRequest(t, http.MethodDelete, srv.URL+"/admin/api/memories?id="+stored.ID, token, ""))
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting stored memory, got %d", delResp.StatusCode)
	}
}

func TestMemoriesRouteMissingIDIsBadArgument(t *testing.T) {
	srv, token := newTestServer(t)
	resp, err := srv.Client().Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/memories", token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without an id, got %d", resp.StatusCode)
	}
}

func TestTicketsRouteCreateListUpdate(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	createResp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/admin/api/tickets", token,
		`{"project_id":"proj1","title":"fix bug","description":"it breaks","type":"bug","priority":"high","reporter":"alice"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var created map[string]any
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	createResp.Body.Close()
	ticketID, _ := created["id"].(string)
	if ticketID == "" {
		t.Fatalf("expected an id in the create response, got %+v", created)
	}

	listResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/tickets?project_id=proj1", token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var list []map[string]any
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	listResp.Body.Close()
	if len(list) != 1 {
		t.Fatalf("expected one ticket listed for proj1, got %d", len(list))
	}

	patchReq := authedRequest(t, http.MethodPatch, srv.URL+"/admin/api/tickets", token,
		`{"ticket_id":"`+ticketID+`","status":"in_progress"}`)
	patchResp, err := client.Do(patchReq)
	if err != nil {
		t.Fatalf("PATCH: %v", err)
	}
	defer patchResp.Body.Close()
	if patchResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 updating ticket status, got %d", patchResp.StatusCode)
	}
}

func TestBackupSystemsAndSnapshotsRoutes(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	snapReq := authedRequest(t, http.MethodPost, srv.URL+"/admin/api/backups/snapshots", token,
		`{"system_id":"sys1","config_type":"nginx.conf","content":"server { listen 80; }"}`)
	snapResp, err := client.Do(snapReq)
	if err != nil {
		t.Fatalf("POST snapshot: %v", err)
	}
	defer snapResp.Body.Close()
	if snapResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 creating a snapshot, got %d", snapResp.StatusCode)
	}

	systemsResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/backups/systems", token, ""))
	if err != nil {
		t.Fatalf("GET systems: %v", err)
	}
	defer systemsResp.Body.Close()
	if systemsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing systems, got %d", systemsResp.StatusCode)
	}
}

func TestBroadcastsRouteReturnsEmptyBatchOnFreshBus(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	resp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/broadcasts?after=0", token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 polling broadcasts, got %d", resp.StatusCode)
	}
	var batch []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no broadcasts on a fresh bus, got %+v", batch)
	}
}

func TestBridgesRouteListsNoServersWhenNoneRegistered(t *testing.T) {
	srv, token := newTestServer(t)
	client := srv.Client()

	resp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/admin/api/bridges", token, ""))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing bridges, got %d", resp.StatusCode)
	}
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no bridges registered yet, got %+v", list)
	}
}
