package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
)

// ServeSSE handles GET /sse[?session_id=]. If session_id is absent or
// unknown a fresh session is minted and announced as the first event.
// The connection is held open until the client disconnects or the
// session is closed by the liveness sweep.
func (m *Manager) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var (
		session  *Session
		minted   bool
		replayAt int64
	)
	if id := r.URL.Query().Get("session_id"); id != "" {
		if existing, found := m.Get(id); found && existing.snapshotState() != StateTerminated {
			session = existing
			replayAt = existing.highWaterMark
		}
	}
	if session == nil {
		session = m.Open()
		minted = true
	}
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		session.bindAgent(agentID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if minted {
		fmt.Fprintf(w, "event: session\ndata: %s\n\n", session.ID)
		flusher.Flush()
	}
	session.markLive()
	session.touch()

	var broadcastCh <-chan agents.Broadcast
	var unsubscribe func()
	if m.bus != nil {
		identity := session.boundAgent()
		if identity == "" {
			// No registered agent bound to this connection: subscribe under
			// the session id purely as a fan-out map key. roleMatches will
			// never resolve it to a registry entry, so role-targeted
			// broadcasts correctly never reach an unidentified session.
			identity = session.ID
		}
		broadcastCh, unsubscribe = m.bus.Subscribe(identity)
		defer unsubscribe()
		for _, bc := range m.bus.ReplaySinceForAgent(replayAt, identity) {
			writeBroadcastFrame(w, flusher, session, bc)
		}
	}

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			m.Close(session)
			return
		case <-session.done:
			// Best-effort drain of frames queued before the session closed.
			for {
				select {
				case f := <-session.queue:
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data)
					flusher.Flush()
				default:
					return
				}
			}
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case f := <-session.queue:
			session.mu.Lock()
			session.bufferedSize -= len(f.data)
			session.mu.Unlock()
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data)
			flusher.Flush()
			session.touch()
		case bc, ok := <-broadcastCh:
			if !ok {
				broadcastCh = nil
				continue
			}
			writeBroadcastFrame(w, flusher, session, bc)
		}
	}
}

func writeBroadcastFrame(w http.ResponseWriter, flusher http.Flusher, session *Session, bc agents.Broadcast) {
	encoded, err := json.Marshal(bc)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: broadcast\ndata: %s\n\n", encoded)
	flusher.Flush()
	session.mu.Lock()
	if bc.BroadcastID > session.highWaterMark {
		session.highWaterMark = bc.BroadcastID
	}
	session.mu.Unlock()
}
