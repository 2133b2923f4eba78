package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
)

const DefaultLivenessWindow = 5 * time.Minute

// Registry is the process-wide singleton roster of registered drones. It
// uses one mutex guarding the whole map, matching the "one mutex for the
// roster" resource policy: delegation and liveness sweeps never need to
// coordinate across multiple locks.
type Registry struct {
	mu             sync.RWMutex
	agents         map[string]Agent
	livenessWindow time.Duration
	now            func() time.Time
	memoryStore    memory.Store
	machineID      string
}

func NewRegistry(memoryStore memory.Store, machineID string) *Registry {
	return &Registry{
		agents:         make(map[string]Agent),
		livenessWindow: DefaultLivenessWindow,
		now:            time.Now,
		memoryStore:    memoryStore,
		machineID:      machineID,
	}
}

// Register is idempotent: a second call with the same agent_id updates
// mutable fields and refreshes last_seen rather than erroring.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (Agent, error) {
	if in.AgentID == "" {
		return Agent{}, fmt.Errorf("%w: agent_id is required", hiveerr.ErrBadArgument)
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.agents[in.AgentID]
	if !ok {
		existing = Agent{
			AgentID:      in.AgentID,
			MaxWorkload:  10,
			RegisteredAt: now,
		}
	}
	existing.MachineID = in.MachineID
	existing.Role = in.Role
	existing.Capabilities = in.Capabilities
	existing.Metadata = in.Metadata
	existing.LastSeen = now
	existing.Status = StatusActive
	r.agents[in.AgentID] = existing
	return existing, nil
}

// Heartbeat refreshes last_seen for an already-registered agent.
func (r *Registry) Heartbeat(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: unknown agent %q", hiveerr.ErrBadArgument, agentID)
	}
	a.LastSeen = r.now()
	if a.Status == StatusOffline {
		a.Status = StatusActive
	}
	r.agents[agentID] = a
	return nil
}

func (r *Registry) isActiveLocked(a Agent) bool {
	return r.now().Sub(a.LastSeen) <= r.livenessWindow
}

// Roster returns a paginated, name-ordered view of the registry.
func (r *Registry) Roster(q RosterQuery) RosterPage {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	r.mu.RLock()
	all := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if !q.IncludeInactive && !r.isActiveLocked(a) && a.Status == StatusOffline {
			continue
		}
		all = append(all, a)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].AgentID < all[j].AgentID })

	total := len(all)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return RosterPage{Agents: all[start:end], Total: total, HasMore: end < total}
}

// Delegate resolves the best match for a task among active, capable agents
// and writes a task memory, matching the registry's delegation contract.
func (r *Registry) Delegate(ctx context.Context, in DelegateInput) (DelegateResult, error) {
	r.mu.Lock()
	var chosen *Agent

	if in.TargetAgent != "" {
		if a, ok := r.agents[in.TargetAgent]; ok && r.isActiveLocked(a) && a.CurrentWorkload < a.MaxWorkload {
			chosen = &a
		} else {
			r.mu.Unlock()
			return DelegateResult{}, fmt.Errorf("%w: target agent %q is not available", hiveerr.ErrBadArgument, in.TargetAgent)
		}
	} else {
		var bestRatio = 2.0
		var bestLastSeen time.Time
		for _, a := range r.agents {
			if !r.isActiveLocked(a) || a.CurrentWorkload >= a.MaxWorkload {
				continue
			}
			if !a.hasCapabilities(in.RequiredCapabilities) {
				continue
			}
			ratio := float64(a.CurrentWorkload) / float64(a.MaxWorkload)
			candidate := a
			if chosen == nil || ratio < bestRatio || (ratio == bestRatio && candidate.LastSeen.Before(bestLastSeen)) {
				chosen = &candidate
				bestRatio = ratio
				bestLastSeen = candidate.LastSeen
			}
		}
	}

	if chosen == nil {
		r.mu.Unlock()
		return DelegateResult{}, fmt.Errorf("%w: no active agent has capacity and required capabilities", hiveerr.ErrResourceExhausted)
	}

	chosen.CurrentWorkload++
	r.agents[chosen.AgentID] = *chosen
	assigned := chosen.AgentID
	r.mu.Unlock()

	result := DelegateResult{AssignedAgent: assigned}
	if r.memoryStore != nil {
		id, err := r.memoryStore.Store(ctx, memory.StoreInput{
			Content:   fmt.Sprintf("delegated task %q to %s: %s", in.Task, assigned, in.Task),
			Category:  memory.CategoryAgent,
			Scope:     memory.ScopeGlobal,
			Tags:      []string{"task", "delegation", assigned},
			MachineID: r.machineID,
		})
		if err == nil {
			result.TaskMemoryID = id
		}
	}
	return result, nil
}

// ReleaseWorkload decrements an agent's current_workload, used when a
// delegated task completes or its owning session cancels.
func (r *Registry) ReleaseWorkload(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok || a.CurrentWorkload <= 0 {
		return
	}
	a.CurrentWorkload--
	r.agents[agentID] = a
}

// SweepLiveness marks every agent whose last_seen exceeds the liveness
// window as offline, so reads observe a consistent view without
// recomputing liveness inline on every roster/delegate call.
func (r *Registry) SweepLiveness() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.agents {
		if a.Status != StatusOffline && !r.isActiveLocked(a) {
			a.Status = StatusOffline
			r.agents[id] = a
		}
	}
}

func (r *Registry) Get(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}
