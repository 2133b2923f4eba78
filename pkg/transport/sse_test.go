package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
	"github.com/lancejames221b/agent-hivemind/pkg/memory/embedding"
)

// flushRecorder is a minimal concurrency-safe http.ResponseWriter +
// http.Flusher: httptest.ResponseRecorder's bytes.Buffer is not safe to
// read from a second goroutine while the handler under test is still
// writing to it, which ServeSSE does for as long as its connection stays
// open.
type flushRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	code   int
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{header: make(http.Header)}
}

func (f *flushRecorder) Header() http.Header { return f.header }

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *flushRecorder) WriteHeader(code int) { f.code = code }

func (f *flushRecorder) Flush() {}

func (f *flushRecorder) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func waitForSubstring(t *testing.T, rec *flushRecorder, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(rec.String(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in SSE output, got: %s", substr, rec.String())
}

func TestServeSSEBindsAgentAndDeliversRoleTargetedBroadcast(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewNoneProvider(), memory.HybridConfig{})
	registry := agents.NewRegistry(store, "m1")
	if _, err := registry.Register(context.Background(), agents.RegisterInput{AgentID: "worker-1", Role: "worker"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	bus := agents.NewBus(registry)
	m := NewManager(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse?agent_id=worker-1", nil).WithContext(ctx)
	rec := newFlushRecorder()

	done := make(chan struct{})
	go func() {
		m.ServeSSE(rec, req)
		close(done)
	}()

	waitForSubstring(t, rec, "event: session")
	bus.Publish("source", "m1", "alert", agents.SeverityWarn, "worker only", []string{"worker"})
	waitForSubstring(t, rec, "worker only")

	cancel()
	<-done
}

func TestServeSSEUnboundSessionDoesNotReceiveRoleTargetedBroadcast(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewNoneProvider(), memory.HybridConfig{})
	registry := agents.NewRegistry(store, "m1")
	if _, err := registry.Register(context.Background(), agents.RegisterInput{AgentID: "other-1", Role: "supervisor"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	bus := agents.NewBus(registry)
	m := NewManager(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	rec := newFlushRecorder()

	done := make(chan struct{})
	go func() {
		m.ServeSSE(rec, req)
		close(done)
	}()

	waitForSubstring(t, rec, "event: session")
	bus.Publish("source", "m1", "alert", agents.SeverityWarn, "supervisors only", []string{"supervisor"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if strings.Contains(rec.String(), "supervisors only") {
		t.Fatalf("expected an unidentified session to never see a role-targeted broadcast, got: %s", rec.String())
	}
}

func TestServeSSEReplaysOnlyMatchingRoleBacklog(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewNoneProvider(), memory.HybridConfig{})
	registry := agents.NewRegistry(store, "m1")
	if _, err := registry.Register(context.Background(), agents.RegisterInput{AgentID: "worker-2", Role: "worker"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	bus := agents.NewBus(registry)
	bus.Publish("source", "m1", "alert", agents.SeverityWarn, "for workers", []string{"worker"})
	bus.Publish("source", "m1", "alert", agents.SeverityWarn, "for supervisors", []string{"supervisor"})

	m := NewManager(bus, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse?agent_id=worker-2", nil).WithContext(ctx)
	rec := newFlushRecorder()

	done := make(chan struct{})
	go func() {
		m.ServeSSE(rec, req)
		close(done)
	}()

	waitForSubstring(t, rec, "for workers")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if strings.Contains(rec.String(), "for supervisors") {
		t.Fatalf("expected replay to exclude a broadcast targeted at a role this agent doesn't hold, got: %s", rec.String())
	}
}
