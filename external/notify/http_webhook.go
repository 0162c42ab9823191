package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pitchlab/matchclip/internal/notify"
)

// HTTPWebhook posts operator events to a configured webhook. An empty URL
// disables delivery without disabling the pipeline.
type HTTPWebhook struct {
	webhookURL string
	client     *http.Client
}

const deliveryTimeout = 10 * time.Second

func NewHTTPWebhook(webhookURL string) *HTTPWebhook {
	return &HTTPWebhook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: deliveryTimeout},
	}
}

type webhookPayload struct {
	Type            string  `json:"type"`
	MatchID         string  `json:"matchId"`
	IncidentID      string  `json:"incidentId,omitempty"`
	EventType       string  `json:"eventType,omitempty"`
	Description     string  `json:"description,omitempty"`
	Minute          int     `json:"minute,omitempty"`
	Second          int     `json:"second,omitempty"`
	Source          string  `json:"source,omitempty"`
	Approved        bool    `json:"approved,omitempty"`
	ClipURL         string  `json:"clipUrl,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	Text            string  `json:"text,omitempty"`
	VideoURL        string  `json:"videoUrl,omitempty"`
	EventsCount     int     `json:"eventsCount,omitempty"`
	TranscriptWords int     `json:"transcriptWords,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

func (w *HTTPWebhook) IncidentDetected(ctx context.Context, event notify.IncidentEvent) {
	w.send(ctx, webhookPayload{
		Type:        "incident_detected",
		MatchID:     event.MatchID,
		IncidentID:  event.IncidentID,
		EventType:   event.EventType,
		Description: event.Description,
		Minute:      event.Minute,
		Second:      event.Second,
		Source:      event.Source,
	})
}

func (w *HTTPWebhook) ApprovalOutcome(ctx context.Context, event notify.ApprovalEvent) {
	w.send(ctx, webhookPayload{
		Type:       "approval_outcome",
		MatchID:    event.MatchID,
		IncidentID: event.IncidentID,
		Approved:   event.Approved,
		ClipURL:    event.ClipURL,
		Reason:     event.Reason,
	})
}

func (w *HTTPWebhook) TranscriptChunk(ctx context.Context, matchID, text string) {
	w.send(ctx, webhookPayload{
		Type:    "transcript_chunk",
		MatchID: matchID,
		Text:    text,
	})
}

func (w *HTTPWebhook) SessionSummary(ctx context.Context, event notify.SummaryEvent) {
	w.send(ctx, webhookPayload{
		Type:            "session_summary",
		MatchID:         event.MatchID,
		VideoURL:        event.VideoURL,
		EventsCount:     event.EventsCount,
		TranscriptWords: event.TranscriptWords,
		DurationSeconds: event.DurationSeconds,
	})
}

func (w *HTTPWebhook) send(ctx context.Context, payload webhookPayload) {
	if w.webhookURL == "" {
		return
	}
	if err := w.post(ctx, payload); err != nil {
		slog.Warn("webhook delivery failed", "error", err, "type", payload.Type, "match_id", payload.MatchID)
	}
}

func (w *HTTPWebhook) post(ctx context.Context, payload webhookPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
