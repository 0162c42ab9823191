package notify

import "context"

type IncidentEvent struct {
	MatchID     string
	IncidentID  string
	EventType   string
	Description string
	Minute      int
	Second      int
	Source      string
}

type ApprovalEvent struct {
	MatchID    string
	IncidentID string
	Approved   bool
	ClipURL    string
	Reason     string
}

type SummaryEvent struct {
	MatchID         string
	VideoURL        string
	EventsCount     int
	TranscriptWords int
	DurationSeconds float64
}

// Notifier surfaces operator-facing events. Implementations carry a category
// and short message only, never raw internal errors.
type Notifier interface {
	IncidentDetected(ctx context.Context, event IncidentEvent)
	ApprovalOutcome(ctx context.Context, event ApprovalEvent)
	TranscriptChunk(ctx context.Context, matchID, text string)
	SessionSummary(ctx context.Context, event SummaryEvent)
}
