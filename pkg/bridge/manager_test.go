package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

func TestNextBackoffDoublesWithCap(t *testing.T) {
	if got := nextBackoff(0); got != initialBackoff {
		t.Fatalf("expected zero backoff to reset to initial, got %v", got)
	}
	got := initialBackoff
	for i := 0; i < 10; i++ {
		got = nextBackoff(got)
	}
	if got != maxBackoff {
		t.Fatalf("expected repeated doubling to cap at %v, got %v", maxBackoff, got)
	}
}

func TestRegisterServerRejectsMissingServerID(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	err := m.RegisterServer(context.Background(), ServerConfig{Transport: TransportStdio, Command: "true"})
	if hiveerr.KindOf(err) != hiveerr.KindBadArgument {
		t.Fatalf("expected BadArgument for missing server_id, got %v", err)
	}
}

func TestRegisterServerMarksFailedOnUnreachableStdioTarget(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	cfg := ServerConfig{
		ServerID:  "ghost",
		Transport: TransportStdio,
		Command:   "/no/such/hivemind-bridge-binary",
	}
	if err := m.RegisterServer(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterServer: %v", err)
	}

	list, err := m.ListBridges(context.Background())
	if err != nil {
		t.Fatalf("ListBridges: %v", err)
	}
	if len(list) != 1 || list[0].ServerID != "ghost" {
		t.Fatalf("expected one bridge entry for ghost, got %+v", list)
	}
	if list[0].Status != string(StatusFailed) {
		t.Fatalf("expected status %q after an unreachable target, got %q", StatusFailed, list[0].Status)
	}
	if len(list[0].Tools) != 0 {
		t.Fatalf("expected no discovered tools for a failed server, got %v", list[0].Tools)
	}
}

func TestRefreshServerBackoffGrowsOnRepeatedFailure(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	cfg := ServerConfig{
		ServerID:  "ghost2",
		Transport: TransportStdio,
		Command:   "/no/such/hivemind-bridge-binary",
	}
	if err := m.RegisterServer(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterServer: %v", err)
	}

	m.mu.Lock()
	first := m.servers["ghost2"].backoff
	firstFails := m.servers["ghost2"].consecutiveFail
	m.mu.Unlock()
	if firstFails != 1 {
		t.Fatalf("expected one recorded failure after registration, got %d", firstFails)
	}

	m.refreshServer(context.Background(), "ghost2")

	m.mu.Lock()
	second := m.servers["ghost2"].backoff
	secondFails := m.servers["ghost2"].consecutiveFail
	m.mu.Unlock()

	if second <= first {
		t.Fatalf("expected backoff to grow after a second failure, got %v then %v", first, second)
	}
	if secondFails != 2 {
		t.Fatalf("expected consecutive failure count to reach 2, got %d", secondFails)
	}
}

func TestCallToolUnknownServerReturnsBadArgument(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	_, err := m.CallTool(context.Background(), "nope", "whatever", nil)
	if hiveerr.KindOf(err) != hiveerr.KindBadArgument {
		t.Fatalf("expected BadArgument for an unknown server, got %v", err)
	}
}

func TestCallToolUnreachableServerRetriesThenSurfacesBridgeDown(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	cfg := ServerConfig{
		ServerID:  "ghost3",
		Transport: TransportStdio,
		Command:   "/no/such/hivemind-bridge-binary",
	}
	if err := m.RegisterServer(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterServer: %v", err)
	}

	start := time.Now()
	_, err := m.CallTool(context.Background(), "ghost3", "anything", nil)
	elapsed := time.Since(start)

	if hiveerr.KindOf(err) != hiveerr.KindBridgeDown {
		t.Fatalf("expected BridgeDown after both attempts fail, got %v", err)
	}
	if elapsed < 150*time.Millisecond {
		t.Fatalf("expected CallTool to wait out the jittered retry delay before its second attempt, elapsed %v", elapsed)
	}
}

func TestCallToolHonorsContextCancellationWithoutRetry(t *testing.T) {
	m := NewManager(tools.NewRegistry(), zerolog.Nop())
	cfg := ServerConfig{
		ServerID:  "ghost4",
		Transport: TransportStdio,
		Command:   "/no/such/hivemind-bridge-binary",
	}
	if err := m.RegisterServer(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.CallTool(ctx, "ghost4", "anything", nil)
	if hiveerr.KindOf(err) != hiveerr.KindBridgeTimeout {
		t.Fatalf("expected BridgeTimeout for an already-cancelled context, got %v", err)
	}
}
