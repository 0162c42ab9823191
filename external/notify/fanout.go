package notify

import (
	"context"

	"github.com/pitchlab/matchclip/internal/notify"
)

// Fanout delivers each event to every configured sink.
type Fanout struct {
	sinks []notify.Notifier
}

func NewFanout(sinks ...notify.Notifier) notify.Notifier {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) IncidentDetected(ctx context.Context, event notify.IncidentEvent) {
	for _, s := range f.sinks {
		s.IncidentDetected(ctx, event)
	}
}

func (f *Fanout) ApprovalOutcome(ctx context.Context, event notify.ApprovalEvent) {
	for _, s := range f.sinks {
		s.ApprovalOutcome(ctx, event)
	}
}

func (f *Fanout) TranscriptChunk(ctx context.Context, matchID, text string) {
	for _, s := range f.sinks {
		s.TranscriptChunk(ctx, matchID, text)
	}
}

func (f *Fanout) SessionSummary(ctx context.Context, event notify.SummaryEvent) {
	for _, s := range f.sinks {
		s.SessionSummary(ctx, event)
	}
}
