package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pitchlab/matchclip/internal/notify"
)

const clientReadDeadline = 60 * time.Second

// WSHub fans operator events out to every connected dashboard over
// websockets. Clients are read only for keepalives.
type WSHub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *WSHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "clients", count)

	_ = conn.SetReadDeadline(time.Now().Add(clientReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(clientReadDeadline))
		return nil
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
		slog.Info("ws client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(clientReadDeadline))
	}
}

func (h *WSHub) broadcast(payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.WriteJSON(payload); err != nil {
			slog.Warn("ws broadcast failed", "error", err)
		}
	}
}

func (h *WSHub) IncidentDetected(_ context.Context, event notify.IncidentEvent) {
	h.broadcast(map[string]any{
		"type":        "incident_detected",
		"matchId":     event.MatchID,
		"incidentId":  event.IncidentID,
		"eventType":   event.EventType,
		"description": event.Description,
		"minute":      event.Minute,
		"second":      event.Second,
		"source":      event.Source,
	})
}

func (h *WSHub) ApprovalOutcome(_ context.Context, event notify.ApprovalEvent) {
	h.broadcast(map[string]any{
		"type":       "approval_outcome",
		"matchId":    event.MatchID,
		"incidentId": event.IncidentID,
		"approved":   event.Approved,
		"clipUrl":    event.ClipURL,
		"reason":     event.Reason,
	})
}

func (h *WSHub) TranscriptChunk(_ context.Context, matchID, text string) {
	h.broadcast(map[string]any{
		"type":    "transcript_chunk",
		"matchId": matchID,
		"text":    text,
	})
}

func (h *WSHub) SessionSummary(_ context.Context, event notify.SummaryEvent) {
	h.broadcast(map[string]any{
		"type":            "session_summary",
		"matchId":         event.MatchID,
		"videoUrl":        event.VideoURL,
		"eventsCount":     event.EventsCount,
		"transcriptWords": event.TranscriptWords,
		"durationSeconds": event.DurationSeconds,
	})
}
