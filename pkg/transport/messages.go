package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

// invocation is the wire shape of a POST /messages body.
type invocation struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

type resultPayload struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type recoveryPayload struct {
	Error               string `json:"error"`
	OldSessionID        string `json:"old_session_id"`
	SuggestedNewSession string `json:"suggested_new_session_id"`
	SSEURL              string `json:"sse_url"`
}

// HandleMessages handles POST /messages?session_id=…: it accepts a tool
// invocation, runs it asynchronously, and delivers the result out-of-band
// on the session's SSE stream. The HTTP response is an immediate 202,
// a 410 with a recovery payload on a stale session, or a 400 on a
// malformed body.
func (m *Manager) HandleMessages(executor *tools.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sessionID := r.URL.Query().Get("session_id")
		session, live := m.Live(sessionID)
		if !live {
			recovered := m.Recover(sessionID)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGone)
			_ = json.NewEncoder(w).Encode(recoveryPayload{
				Error:               "session_expired",
				OldSessionID:        sessionID,
				SuggestedNewSession: recovered.ID,
				SSEURL:              "/sse?session_id=" + recovered.ID,
			})
			return
		}

		var in invocation
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Tool == "" {
			http.Error(w, `{"error":"malformed invocation body"}`, http.StatusBadRequest)
			return
		}
		session.touch()

		go m.runInvocation(executor, session, in)

		w.WriteHeader(http.StatusAccepted)
	}
}

func (m *Manager) runInvocation(executor *tools.Executor, session *Session, in invocation) {
	ctx, cancel := context.WithTimeout(context.Background(), tools.DefaultCallDeadline)
	defer cancel()

	result, err := executor.ExecuteWithID(ctx, in.ID, in.Tool, in.Args)

	var payload resultPayload
	payload.ID = in.ID
	if err != nil {
		kind := hiveerr.KindOf(err)
		payload.OK = false
		payload.Payload = errorPayload{Kind: string(kind), Message: err.Error()}
	} else {
		payload.OK = result.Status != tools.ResultError
		if result.Details != nil {
			payload.Payload = result.Details
		} else {
			payload.Payload = result.Text()
		}
	}

	encoded, encErr := json.Marshal(payload)
	if encErr != nil {
		m.log.Error().Err(encErr).Str("tool", in.Tool).Msg("failed to encode tool result")
		return
	}

	deliverCtx, cancel2 := context.WithTimeout(context.Background(), tools.DefaultCallDeadline)
	defer cancel2()
	if enqErr := m.Enqueue(deliverCtx, session, "result", string(encoded)); enqErr != nil {
		m.log.Warn().Err(enqErr).Str("session_id", session.ID).Str("call_id", in.ID).Msg("failed to deliver tool result")
	}
}
