package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// pingInterval keeps intermediary proxies from idling out the long-lived
// live-tail connection.
const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The Origin header is not checked: every origin may upgrade. Access
	// is gated by the session and org-membership check that runs before
	// the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleLiveTailWS implements the WebSocket live-tail endpoint, scoped to
// a single project.
func (a *App) HandleLiveTailWS(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid projectId")
		return
	}
	orgID, err := a.projectOrgID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if a.Logger != nil {
			a.Logger.WithError(err).Warn("live-tail websocket upgrade failed")
		}
		return
	}
	defer conn.Close()
	if a.Metrics != nil {
		a.Metrics.LiveTailConns.Inc()
		defer a.Metrics.LiveTailConns.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub := a.LiveTail.Subscribe(ctx, projectID)
	defer sub.Close()

	go readLoopDiscard(conn, cancel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoopDiscard drains and discards client frames so the connection
// notices a client-initiated close (gorilla/websocket requires the read
// pump to run for control-frame handling), canceling ctx once it does.
func readLoopDiscard(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// HandleLiveTailSSE implements the Server-Sent-Events live-tail endpoint
// used by clients that can't open a WebSocket
// (GET /api/v1/siem/events). Org scope is resolved from the organizationId
// query parameter and membership is enforced before the stream opens.
func (a *App) HandleLiveTailSSE(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID, err := uuid.Parse(q.Get("organizationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organizationId is required")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if actualOrg, err := a.projectOrgID(r.Context(), projectID); err != nil || actualOrg != orgID {
		writeError(w, http.StatusBadRequest, "projectId does not belong to organizationId")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	if a.Metrics != nil {
		a.Metrics.LiveTailConns.Inc()
		defer a.Metrics.LiveTailConns.Dec()
	}

	ctx := r.Context()
	sub := a.LiveTail.Subscribe(ctx, projectID)
	defer sub.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := w.Write(sseFrame("log", frame)); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sseFrame(event string, data json.RawMessage) []byte {
	return []byte("event: " + event + "\ndata: " + string(data) + "\n\n")
}
