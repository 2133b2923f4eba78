package agents

import (
	"context"
	"testing"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/memory"
	"github.com/lancejames221b/agent-hivemind/pkg/memory/embedding"
)

func newTestRegistry() *Registry {
	store := memory.NewInMemoryStore(embedding.NewNoneProvider(), memory.HybridConfig{})
	return NewRegistry(store, "machine-1")
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	first, err := r.Register(ctx, RegisterInput{AgentID: "a1", Role: "worker", MachineID: "m1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := r.Register(ctx, RegisterInput{AgentID: "a1", Role: "supervisor", MachineID: "m1"})
	if err != nil {
		t.Fatalf("Register (second): %v", err)
	}
	if second.Role != "supervisor" {
		t.Fatalf("expected re-registration to update role, got %q", second.Role)
	}
	if second.RegisteredAt != first.RegisteredAt {
		t.Fatalf("expected RegisteredAt to be preserved across re-registration")
	}
}

func TestRegisterRequiresAgentID(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(context.Background(), RegisterInput{}); err == nil {
		t.Fatalf("expected an error when agent_id is missing")
	}
}

func TestDelegatePrefersLeastLoadedCapableAgent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	if _, err := r.Register(ctx, RegisterInput{AgentID: "busy", Capabilities: []string{"build"}}); err != nil {
		t.Fatalf("Register busy: %v", err)
	}
	if _, err := r.Register(ctx, RegisterInput{AgentID: "idle", Capabilities: []string{"build"}}); err != nil {
		t.Fatalf("Register idle: %v", err)
	}
	if _, err := r.Delegate(ctx, DelegateInput{TargetAgent: "busy", RequiredCapabilities: []string{"build"}}); err != nil {
		t.Fatalf("priming delegate to busy: %v", err)
	}

	result, err := r.Delegate(ctx, DelegateInput{RequiredCapabilities: []string{"build"}})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if result.AssignedAgent != "idle" {
		t.Fatalf("expected the less-loaded 'idle' agent to be chosen, got %q", result.AssignedAgent)
	}
	if result.TaskMemoryID == "" {
		t.Fatalf("expected a task memory id to be recorded for the delegation")
	}
}

func TestDelegateRejectsMissingCapability(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	if _, err := r.Register(ctx, RegisterInput{AgentID: "a1", Capabilities: []string{"search"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Delegate(ctx, DelegateInput{RequiredCapabilities: []string{"build"}}); err == nil {
		t.Fatalf("expected delegation to fail when no agent has the required capability")
	}
}

func TestDelegateToExplicitTargetRequiresCapacity(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	if _, err := r.Register(ctx, RegisterInput{AgentID: "full"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, _ := r.Get("full")
	a.MaxWorkload = 1
	a.CurrentWorkload = 1
	r.mu.Lock()
	r.agents["full"] = a
	r.mu.Unlock()

	if _, err := r.Delegate(ctx, DelegateInput{TargetAgent: "full"}); err == nil {
		t.Fatalf("expected delegation to a full agent to fail")
	}
}

func TestSweepLivenessMarksStaleAgentsOffline(t *testing.T) {
	r := newTestRegistry()
	r.livenessWindow = time.Millisecond
	if _, err := r.Register(context.Background(), RegisterInput{AgentID: "stale"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	r.SweepLiveness()

	a, ok := r.Get("stale")
	if !ok || a.Status != StatusOffline {
		t.Fatalf("expected stale agent to be marked offline, got %+v", a)
	}
}

func TestRosterExcludesOfflineByDefault(t *testing.T) {
	r := newTestRegistry()
	r.livenessWindow = time.Millisecond
	if _, err := r.Register(context.Background(), RegisterInput{AgentID: "stale"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	r.SweepLiveness()

	page := r.Roster(RosterQuery{})
	if page.Total != 0 {
		t.Fatalf("expected the offline agent to be excluded by default, got total %d", page.Total)
	}

	page = r.Roster(RosterQuery{IncludeInactive: true})
	if page.Total != 1 {
		t.Fatalf("expected IncludeInactive to surface the offline agent, got total %d", page.Total)
	}
}

func TestReleaseWorkloadDecrementsWithoutGoingNegative(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	if _, err := r.Register(ctx, RegisterInput{AgentID: "a1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.ReleaseWorkload("a1")
	a, _ := r.Get("a1")
	if a.CurrentWorkload != 0 {
		t.Fatalf("expected workload to stay at 0, got %d", a.CurrentWorkload)
	}
}
