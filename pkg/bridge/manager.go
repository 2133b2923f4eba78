package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

type serverState struct {
	cfg             ServerConfig
	status          Status
	lastError       string
	toolCache       []*mcp.Tool
	toolCacheAt     time.Time
	backoff         time.Duration
	consecutiveFail int
}

// Manager supervises registered bridge servers: on every health-ping tick
// it retries discovery for each server that is not connected, and it
// caches discovered tools with a TTL. Servers that are connected are not
// pinged. Each failure doubles the server's recorded backoff (capped at
// maxBackoff), but the retry loop runs on the fixed healthPingInterval and
// does not wait out that backoff. It implements tools.BridgeCaller so the call_bridge_tool and
// list_bridges builtins can be wired to it directly.
type Manager struct {
	mu       sync.Mutex
	servers  map[string]*serverState
	registry *tools.Registry // may be nil; when set, discovered tools are registered namespaced
	log      zerolog.Logger
	stopCh   chan struct{}
}

// NewManager creates a bridge manager. registry, if non-nil, receives a
// `bridge:<server_id>:<tool>` entry for every tool discovered on a
// registered server, so the rest of the catalogue can call bridge tools
// by name without going through call_bridge_tool.
func NewManager(registry *tools.Registry, log zerolog.Logger) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// RegisterServer adds a server and attempts an initial connection
// (recorded as status rather than returned as a hard error, since the
// supervisor will retry).
func (m *Manager) RegisterServer(ctx context.Context, cfg ServerConfig) error {
	if cfg.ServerID == "" {
		return hiveerr.New(hiveerr.KindBadArgument, "server_id is required")
	}
	m.mu.Lock()
	m.servers[cfg.ServerID] = &serverState{cfg: cfg, status: StatusConnecting, backoff: initialBackoff}
	m.mu.Unlock()

	m.refreshServer(ctx, cfg.ServerID)
	return nil
}

// Start launches the periodic health-ping loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(healthPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.pingAll(ctx)
		}
	}
}

// Stop ends the health-ping loop.
func (m *Manager) Stop() {
	close(m.stopCh)
}

func (m *Manager) pingAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.servers))
	for id, st := range m.servers {
		if st.status != StatusConnected {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.refreshServer(ctx, id)
	}
}

func (m *Manager) refreshServer(ctx context.Context, serverID string) {
	m.mu.Lock()
	st, ok := m.servers[serverID]
	if !ok {
		m.mu.Unlock()
		return
	}
	cfg := st.cfg
	m.mu.Unlock()

	discoverCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	tools_, err := discoverTools(discoverCtx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok = m.servers[serverID]
	if !ok {
		return
	}
	if err != nil {
		st.consecutiveFail++
		st.status = StatusFailed
		st.lastError = err.Error()
		st.backoff = nextBackoff(st.backoff)
		m.log.Warn().Err(err).Str("server_id", serverID).Int("attempt", st.consecutiveFail).Msg("bridge discovery failed")
		return
	}
	st.status = StatusConnected
	st.lastError = ""
	st.consecutiveFail = 0
	st.backoff = initialBackoff
	st.toolCache = tools_
	st.toolCacheAt = time.Now()

	if m.registry != nil {
		for _, t := range tools_ {
			m.registerBridgeTool(serverID, t)
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	if next <= 0 {
		return initialBackoff
	}
	return next
}

func (m *Manager) registerBridgeTool(serverID string, mcpTool *mcp.Tool) {
	name := fmt.Sprintf("bridge:%s:%s", serverID, mcpTool.Name)
	m.registry.Register(&tools.Tool{
		Name:        name,
		Description: mcpTool.Description,
		Group:       tools.GroupBridge,
		Type:        tools.ToolTypeBridge,
		MCPTool:     mcpTool,
		Deadline:    30,
		Execute: func(ctx context.Context, input map[string]any) (*tools.Result, error) {
			return m.CallTool(ctx, serverID, mcpTool.Name, input)
		},
	})
}

// cachedTools returns a server's last discovered tools, refreshing first
// if the cache has expired.
func (m *Manager) cachedTools(ctx context.Context, serverID string) ([]*mcp.Tool, error) {
	m.mu.Lock()
	st, ok := m.servers[serverID]
	if !ok {
		m.mu.Unlock()
		return nil, hiveerr.New(hiveerr.KindBadArgument, "unknown bridge server %q", serverID)
	}
	fresh := time.Since(st.toolCacheAt) < toolCacheTTL
	cached := st.toolCache
	m.mu.Unlock()
	if fresh {
		return cached, nil
	}
	m.refreshServer(ctx, serverID)
	m.mu.Lock()
	defer m.mu.Unlock()
	st = m.servers[serverID]
	return st.toolCache, nil
}

// ListBridges implements tools.BridgeCaller.
func (m *Manager) ListBridges(ctx context.Context) ([]tools.BridgeInfo, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	out := make([]tools.BridgeInfo, 0, len(ids))
	for _, id := range ids {
		m.mu.Lock()
		st := m.servers[id]
		names := make([]string, 0, len(st.toolCache))
		for _, t := range st.toolCache {
			names = append(names, t.Name)
		}
		info := tools.BridgeInfo{ServerID: id, Status: string(st.status), Tools: names}
		m.mu.Unlock()
		out = append(out, info)
	}
	return out, nil
}

// CallTool implements tools.BridgeCaller, proxying a tool call to the
// named server under the per-call deadline already applied by the
// dispatcher. A transient failure is retried once after a jittered
// backoff before surfacing, per the propagation policy.
func (m *Manager) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*tools.Result, error) {
	m.mu.Lock()
	st, ok := m.servers[serverID]
	m.mu.Unlock()
	if !ok {
		return nil, hiveerr.New(hiveerr.KindBadArgument, "unknown bridge server %q", serverID)
	}
	cfg := st.cfg

	text, isError, err := callTool(ctx, cfg, toolName, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBridgeTimeout, err, "call %s on %s", toolName, serverID)
		}
		select {
		case <-time.After(jitteredRetryDelay()):
		case <-ctx.Done():
			return nil, hiveerr.Wrap(hiveerr.KindBridgeTimeout, ctx.Err(), "call %s on %s", toolName, serverID)
		}
		text, isError, err = callTool(ctx, cfg, toolName, args)
		if err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBridgeDown, err, "call %s on %s", toolName, serverID)
		}
	}
	if isError {
		return tools.ErrorResultf(toolName, "%s", text), nil
	}
	return tools.TextResult(text), nil
}

func jitteredRetryDelay() time.Duration {
	return 150*time.Millisecond + time.Duration(time.Now().UnixNano()%150)*time.Millisecond
}
