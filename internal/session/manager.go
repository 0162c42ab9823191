package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/clip"
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/extractor"
	"github.com/pitchlab/matchclip/internal/finalize"
	"github.com/pitchlab/matchclip/internal/incident"
	"github.com/pitchlab/matchclip/internal/media"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
	"github.com/pitchlab/matchclip/internal/segment"
	"github.com/pitchlab/matchclip/internal/storage"
	"github.com/pitchlab/matchclip/internal/transcriber"
	"github.com/pitchlab/matchclip/internal/transcription"
)

// Manager owns at most one live capture session and exposes the pipeline's
// operator entry points.
type Manager struct {
	cfg        *config.Config
	repo       repository.Repository
	device     capture.Device
	stt        transcriber.Transcriber
	ext        extractor.Extractor
	uploader   storage.Uploader
	transcoder media.Transcoder
	notifier   notify.Notifier

	mu         sync.Mutex
	current    *liveSession
	starting   bool
	lastResult *finalize.Result
}

type liveSession struct {
	match     *repository.Match
	buffer    *segment.Buffer
	recorder  *Recorder
	registry  *incident.Registry
	engine    *clip.Engine
	loop      *transcription.Loop
	cancel    context.CancelFunc
	startedAt time.Time
}

type StartInput struct {
	MatchID string
	Source  capture.Source
}

func NewManager(cfg *config.Config, repo repository.Repository, device capture.Device, stt transcriber.Transcriber, ext extractor.Extractor, uploader storage.Uploader, transcoder media.Transcoder, notifier notify.Notifier) *Manager {
	return &Manager{
		cfg:        cfg,
		repo:       repo,
		device:     device,
		stt:        stt,
		ext:        ext,
		uploader:   uploader,
		transcoder: transcoder,
		notifier:   notifier,
	}
}

// StartSession acquires the capture handle and wires up the whole pipeline.
// Failure to open the device is fatal and surfaced synchronously.
func (m *Manager) StartSession(ctx context.Context, input StartInput) error {
	// Reserve the session slot before any slow collaborator call so a
	// concurrent StartSession fails instead of racing past the check.
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return fmt.Errorf("a session is already running for match %s", m.current.match.ID)
	}
	if m.starting {
		m.mu.Unlock()
		return fmt.Errorf("a session start is already in progress")
	}
	m.starting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	match, err := m.repo.GetMatch(ctx, input.MatchID)
	if err != nil {
		return fmt.Errorf("failed to load match %s: %w", input.MatchID, err)
	}
	if match == nil {
		return fmt.Errorf("match %s not found", input.MatchID)
	}

	handle, err := m.device.Open(ctx, input.Source)
	if err != nil {
		return fmt.Errorf("capture device unavailable: %w", err)
	}
	slog.Info("capture handle acquired", "match_id", match.ID, "mime_type", handle.MimeType(), "audio_only", input.Source.AudioOnly)

	// The callback closes over the buffer it feeds; segment IDs restart at
	// zero per buffer, so routing through the current session would let a
	// slow upload mark a successor session's same-ID segment.
	var buffer *segment.Buffer
	buffer, err = segment.New(segment.Config{
		Duration:    time.Duration(m.cfg.SegmentDurationMs) * time.Millisecond,
		Overlap:     time.Duration(m.cfg.SegmentOverlapMs) * time.Millisecond,
		MaxSegments: m.cfg.MaxRetainedSegments,
		OnReady: func(seg *segment.Segment) {
			m.uploadSegment(match.ID, buffer, seg)
		},
	})
	if err != nil {
		_ = handle.Close()
		return err
	}

	recorder := NewRecorder(handle, buffer, RecorderConfig{
		ChunkInterval: time.Duration(m.cfg.ChunkIntervalSec) * time.Second,
		RollingChunks: m.cfg.RollingWindowChunks,
	})

	engine := clip.NewEngine(clip.Config{
		MatchID:        match.ID,
		Preroll:        time.Duration(m.cfg.ClipPrerollSec) * time.Second,
		Postroll:       time.Duration(m.cfg.ClipPostrollSec) * time.Second,
		MinSourceBytes: m.cfg.ClipMinSourceBytes,
	}, []clip.BinarySource{
		recorder.Rolling(),
		recorder.Accumulator(),
		segmentSource{buffer: buffer},
	}, m.transcoder, m.uploader)

	registry := incident.NewRegistry(incident.Config{
		MatchID:                 match.ID,
		HomeTeam:                match.HomeTeam,
		AwayTeam:                match.AwayTeam,
		HomeScore:               match.HomeScore,
		AwayScore:               match.AwayScore,
		GoalConfidenceThreshold: m.cfg.GoalConfidenceThreshold,
		ClipMaxAttempts:         m.cfg.ClipMaxAttempts,
	}, m.repo, engine, m.notifier)

	loop := transcription.NewLoop(transcription.Config{
		MatchID:          match.ID,
		Language:         m.cfg.TranscribeLanguage,
		Interval:         time.Duration(m.cfg.TranscribeIntervalSec) * time.Second,
		AutosaveInterval: time.Duration(m.cfg.TranscriptAutosaveSec) * time.Second,
	}, recorder, m.stt, m.ext, registry, matchState{registry: registry, match: match}, m.repo, m.notifier)

	loopCtx, cancel := context.WithCancel(context.Background())
	buffer.Start(0)
	go recorder.Run(loopCtx)
	go loop.Run(loopCtx)

	if err := m.repo.UpdateMatchFields(ctx, match.ID, map[string]any{"status": string(repository.MatchStatusLive)}); err != nil {
		slog.Error("failed to mark match live", "error", err, "match_id", match.ID)
	}

	m.mu.Lock()
	m.current = &liveSession{
		match:     match,
		buffer:    buffer,
		recorder:  recorder,
		registry:  registry,
		engine:    engine,
		loop:      loop,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	m.mu.Unlock()

	slog.Info("session started", "match_id", match.ID, "home", match.HomeTeam, "away", match.AwayTeam)
	return nil
}

// uploadSegment uploads a closed segment and marks it evictable on the
// buffer that emitted it. It runs detached from any request context; the
// session may outlive the request that started it.
func (m *Manager) uploadSegment(matchID string, buffer *segment.Buffer, seg *segment.Segment) {
	ctx := context.Background()
	filename := fmt.Sprintf("segment-%03d-%s.mp4", seg.ID, ulid.Make().String())
	url, err := m.uploader.Upload(ctx, matchID, "segments", seg.Bytes(), filename)
	if err != nil {
		slog.Error("segment upload failed", "error", err, "match_id", matchID, "segment_id", seg.ID)
		return
	}
	buffer.MarkUploaded(seg.ID)
	slog.Info("segment uploaded", "match_id", matchID, "segment_id", seg.ID, "url", url, "from", seg.Start, "to", seg.End)
}

func (m *Manager) Pause(ctx context.Context) error {
	s := m.session()
	if s == nil {
		return fmt.Errorf("no session running")
	}
	s.recorder.Pause()
	s.loop.SaveNow(ctx)
	return nil
}

func (m *Manager) Resume(_ context.Context) error {
	s := m.session()
	if s == nil {
		return fmt.Errorf("no session running")
	}
	s.recorder.Resume()
	return nil
}

// Approve runs the bounded-retry clip saga for a pending incident. It
// blocks until the clip succeeds or the rollback completes.
func (m *Manager) Approve(ctx context.Context, incidentID string) error {
	s := m.session()
	if s == nil {
		return fmt.Errorf("no session running")
	}
	return s.registry.Approve(ctx, incidentID)
}

// AddManualIncident registers an operator-entered incident at the current
// elapsed time; manual entries enter the approved set immediately.
func (m *Manager) AddManualIncident(ctx context.Context, eventType string) (*repository.Incident, error) {
	s := m.session()
	if s == nil {
		return nil, fmt.Errorf("no session running")
	}
	elapsed := s.recorder.Elapsed()
	return s.registry.Add(ctx, incident.Candidate{
		Type:        eventType,
		Description: fmt.Sprintf("manual %s entry", eventType),
		Minute:      int(elapsed) / 60,
		Second:      int(elapsed) % 60,
		EventMs:     int64(elapsed * 1000),
		VideoSecond: elapsed,
		Source:      incident.SourceManual,
	})
}

func (m *Manager) EditIncident(ctx context.Context, incidentID string, fields map[string]any) error {
	s := m.session()
	if s == nil {
		return fmt.Errorf("no session running")
	}
	return s.registry.Edit(ctx, incidentID, fields)
}

func (m *Manager) RemoveIncident(ctx context.Context, incidentID string) error {
	s := m.session()
	if s == nil {
		return fmt.Errorf("no session running")
	}
	return s.registry.Remove(ctx, incidentID)
}

func (m *Manager) session() *liveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// matchState adapts the registry's live scoreboard for the transcription
// loop.
type matchState struct {
	registry *incident.Registry
	match    *repository.Match
}

func (s matchState) Teams() (string, string) {
	return s.match.HomeTeam, s.match.AwayTeam
}

func (s matchState) Scoreboard() (int, int) {
	return s.registry.Scoreboard()
}
