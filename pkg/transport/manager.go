package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

// Manager owns the session table: creation, lookup, recovery, and the
// liveness sweep that moves idle sessions through closing → terminated.
// Broadcast fan-out is delegated to the agents.Bus, keyed by session id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	bus      *agents.Bus
	ttl      time.Duration
	log      zerolog.Logger
}

func NewManager(bus *agents.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		bus:      bus,
		ttl:      DefaultSessionTTL,
		log:      log,
	}
}

// Open mints a fresh session and registers it in the table.
func (m *Manager) Open() *Session {
	s := newSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by id without regard to its state.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Live looks up a session and reports whether it is usable for message
// ingress (state live).
func (m *Manager) Live(id string) (*Session, bool) {
	s, ok := m.Get(id)
	if !ok || !s.isLive() {
		return nil, false
	}
	return s, true
}

// Recover mints a fresh session id for a drone whose old session is gone
// or expired, without requiring auth on the ingress plane per spec.
func (m *Manager) Recover(oldID string) *Session {
	if oldID != "" {
		if old, ok := m.Get(oldID); ok {
			m.close(old)
		}
	}
	return m.Open()
}

// Close transitions a session to closing, draining pending results on a
// best-effort basis, then to terminated after the grace period.
func (m *Manager) Close(s *Session) {
	m.close(s)
}

func (m *Manager) close(s *Session) {
	s.mu.Lock()
	if s.State == StateTerminated || s.State == StateClosing {
		s.mu.Unlock()
		return
	}
	s.State = StateClosing
	s.mu.Unlock()

	close(s.done)

	go func() {
		time.Sleep(TerminatedGracePeriod)
		s.mu.Lock()
		s.State = StateTerminated
		s.mu.Unlock()
		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()
	}()
}

// Enqueue pushes a frame onto a session's writer queue, blocking the
// caller up to deadline under backpressure (§5). On timeout the session
// is moved to closing and the frame is dropped with a log entry.
func (m *Manager) Enqueue(ctx context.Context, s *Session, event, data string) error {
	if !s.isLive() && s.snapshotState() != StateNew {
		return hiveerr.New(hiveerr.KindSessionExpired, "session %s is not live", s.ID)
	}
	s.mu.Lock()
	tooFull := s.bufferedSize+len(data) > DefaultBufferCap
	s.mu.Unlock()

	if !tooFull {
		select {
		case s.queue <- frame{event: event, data: data}:
			s.mu.Lock()
			s.bufferedSize += len(data)
			s.mu.Unlock()
			return nil
		default:
		}
	}

	select {
	case s.queue <- frame{event: event, data: data}:
		s.mu.Lock()
		s.bufferedSize += len(data)
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		m.log.Warn().Str("session_id", s.ID).Str("event", event).Msg("dropping result: session buffer backpressure exceeded deadline")
		m.close(s)
		return hiveerr.New(hiveerr.KindResourceExhausted, "session %s buffer exceeded under backpressure", s.ID)
	case <-s.done:
		return hiveerr.New(hiveerr.KindSessionExpired, "session %s closed while enqueueing", s.ID)
	}
}

// SweepIdle moves sessions idle beyond the TTL into closing. Intended to
// run on a periodic ticker from the composition root.
func (m *Manager) SweepIdle() {
	m.mu.Lock()
	idle := make([]*Session, 0)
	for _, s := range m.sessions {
		if s.snapshotState() == StateLive && s.idleSince() > m.ttl {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		m.close(s)
	}
}

// Count returns the number of tracked sessions (any state), for the
// global open-session cap in §5.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
