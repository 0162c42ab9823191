package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/pitchlab/matchclip/internal/clip"
	"github.com/pitchlab/matchclip/internal/finalize"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
)

// Finalize ends the live session and runs the eight best-effort
// finalization steps. Returns (nil, nil) only when no session ever existed;
// after a successful finalize, repeated calls return the same summary.
func (m *Manager) Finalize(ctx context.Context) (*finalize.Result, error) {
	m.mu.Lock()
	s := m.current
	if s == nil {
		last := m.lastResult
		m.mu.Unlock()
		return last, nil
	}
	m.current = nil
	m.mu.Unlock()

	// Cancel the capture and transcription timers; an in-flight clip call
	// is left to complete since step 5 may depend on its outcome.
	s.cancel()

	result := &finalize.Result{}
	result.StepErrors = finalize.RunSteps(ctx, m.finalizationSteps(s, result))

	m.mu.Lock()
	m.lastResult = result
	m.mu.Unlock()

	m.notifier.SessionSummary(ctx, notify.SummaryEvent{
		MatchID:         s.match.ID,
		VideoURL:        result.VideoURL,
		EventsCount:     result.EventsCount,
		TranscriptWords: result.TranscriptWords,
		DurationSeconds: result.DurationSeconds,
	})
	slog.Info("session finalized", "match_id", s.match.ID, "video_url", result.VideoURL, "events", result.EventsCount, "step_errors", len(result.StepErrors))
	return result, nil
}

func (m *Manager) finalizationSteps(s *liveSession, result *finalize.Result) []finalize.Step {
	matchID := s.match.ID
	var videoID string

	return []finalize.Step{
		{Name: "reconcile-incidents", Run: func(ctx context.Context) error {
			result.EventsCount = s.registry.Count()
			persisted, err := m.repo.ListIncidentsByMatch(ctx, matchID)
			if err != nil {
				return err
			}
			// Either side may undercount; trust whichever saw more.
			if len(persisted) > result.EventsCount {
				result.EventsCount = len(persisted)
			}
			return nil
		}},
		{Name: "final-artifact", Run: func(ctx context.Context) error {
			data := s.recorder.Accumulator().Bytes()
			if len(data) == 0 {
				if blob, _, ok := s.recorder.Rolling().Resolve(0, s.recorder.Elapsed()); ok {
					data = blob
				} else {
					data = s.buffer.BlobForRange(0, s.recorder.Elapsed())
				}
			}
			if len(data) == 0 {
				return fmt.Errorf("no captured data for final artifact")
			}
			merged, err := m.transcoder.Remux(ctx, data)
			if err != nil {
				return fmt.Errorf("final remux failed: %w", err)
			}
			filename := fmt.Sprintf("match-%s-%s.mp4", matchID, ulid.Make().String())
			url, err := m.uploader.Upload(ctx, matchID, "videos", merged, filename)
			if err != nil {
				return fmt.Errorf("final artifact upload failed: %w", err)
			}

			duration := s.recorder.Elapsed()
			if existing, err := m.repo.GetVideoByMatch(ctx, matchID); err == nil && existing != nil {
				videoID = existing.ID
				if err := m.repo.UpdateVideoFields(ctx, existing.ID, map[string]any{"url": url, "duration_seconds": duration}); err != nil {
					return err
				}
			} else {
				created, err := m.repo.CreateVideo(ctx, repository.CreateVideoInput{MatchID: matchID, URL: url, DurationSeconds: duration})
				if err != nil {
					return err
				}
				videoID = created.ID
			}
			result.VideoURL = url
			return nil
		}},
		{Name: "link-incident-videos", Run: func(ctx context.Context) error {
			if videoID == "" {
				return nil
			}
			persisted, err := m.repo.ListIncidentsByMatch(ctx, matchID)
			if err != nil {
				return err
			}
			for _, inc := range persisted {
				if inc.VideoID != "" {
					continue
				}
				if err := m.repo.UpdateIncidentFields(ctx, inc.ID, map[string]any{"video_id": videoID}); err != nil {
					slog.Error("failed to link incident to video", "error", err, "incident_id", inc.ID)
				}
			}
			return nil
		}},
		{Name: "stop-capture", Run: func(context.Context) error {
			return s.recorder.Stop()
		}},
		{Name: "backfill-clips", Run: func(ctx context.Context) error {
			for _, inc := range s.registry.Approved() {
				if inc.ClipURL != "" {
					continue
				}
				url, err := s.engine.Generate(ctx, clip.Request{
					IncidentID:  inc.ID,
					VideoSecond: inc.Metadata.VideoSecond,
					HintURL:     result.VideoURL,
				})
				if err != nil {
					slog.Warn("finalization clip backfill failed", "error", err, "incident_id", inc.ID)
					continue
				}
				s.registry.SetIncidentClipURL(inc.ID, url)
				if err := m.repo.UpdateIncidentFields(ctx, inc.ID, map[string]any{"clip_url": url}); err != nil {
					slog.Error("failed to persist backfilled clip url", "error", err, "incident_id", inc.ID)
				}
			}
			return nil
		}},
		{Name: "update-match", Run: func(ctx context.Context) error {
			home, away := s.registry.Scoreboard()
			return m.repo.UpdateMatchFields(ctx, matchID, map[string]any{
				"home_score": home,
				"away_score": away,
				"status":     string(repository.MatchStatusCompleted),
			})
		}},
		{Name: "save-transcript", Run: func(ctx context.Context) error {
			return m.repo.SaveMatchTranscript(ctx, matchID, s.loop.Transcript())
		}},
		{Name: "completion-report", Run: func(ctx context.Context) error {
			result.DurationSeconds = s.recorder.Elapsed()
			result.TranscriptWords = s.loop.Words()
			clipCount := 0
			for _, inc := range s.registry.Approved() {
				if inc.ClipURL != "" {
					clipCount++
				}
			}
			_, err := m.repo.CreateReport(ctx, repository.CreateReportInput{
				MatchID:         matchID,
				IncidentCount:   result.EventsCount,
				ClipCount:       clipCount,
				DurationSeconds: result.DurationSeconds,
				TranscriptWords: result.TranscriptWords,
			})
			return err
		}},
	}
}
