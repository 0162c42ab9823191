package transcription

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pitchlab/matchclip/internal/extractor"
	"github.com/pitchlab/matchclip/internal/incident"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
	"github.com/pitchlab/matchclip/internal/transcriber"
)

// AudioSource is the slice of the recorder the loop consumes.
type AudioSource interface {
	DrainAudio() []byte
	Elapsed() float64
	Paused() bool
}

// CandidateSink receives extracted incident candidates.
type CandidateSink interface {
	Add(ctx context.Context, c incident.Candidate) (*repository.Incident, error)
}

// MatchState supplies the extraction context.
type MatchState interface {
	Teams() (home, away string)
	Scoreboard() (home, away int)
}

type TranscriptStore interface {
	SaveMatchTranscript(ctx context.Context, matchID, transcript string) error
}

type Config struct {
	MatchID          string
	Language         string
	Interval         time.Duration
	AutosaveInterval time.Duration
}

// Loop periodically drains captured audio, transcribes it, extracts
// incident candidates and grows the session transcript. Collaborator
// failures are logged and the next tick proceeds; the loop never aborts.
type Loop struct {
	cfg      Config
	stt      transcriber.Transcriber
	ext      extractor.Extractor
	sink     CandidateSink
	match    MatchState
	store    TranscriptStore
	notifier notify.Notifier
	audio    AudioSource

	busy atomic.Bool

	mu         sync.Mutex
	transcript strings.Builder
	words      int
	dirty      bool
}

func NewLoop(cfg Config, audio AudioSource, stt transcriber.Transcriber, ext extractor.Extractor, sink CandidateSink, match MatchState, store TranscriptStore, notifier notify.Notifier) *Loop {
	return &Loop{
		cfg:      cfg,
		stt:      stt,
		ext:      ext,
		sink:     sink,
		match:    match,
		store:    store,
		notifier: notifier,
		audio:    audio,
	}
}

func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	autosave := time.NewTicker(l.cfg.AutosaveInterval)
	defer ticker.Stop()
	defer autosave.Stop()
	slog.Info("transcription loop started", "match_id", l.cfg.MatchID, "interval", l.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("transcription loop stopped", "match_id", l.cfg.MatchID, "words", l.Words())
			return
		case <-autosave.C:
			l.SaveNow(ctx)
		case <-ticker.C:
			go l.tick(ctx)
		}
	}
}

// tick self-skips when a previous tick is still in flight or there is
// nothing to transcribe.
func (l *Loop) tick(ctx context.Context) {
	if l.audio.Paused() {
		return
	}
	if !l.busy.CompareAndSwap(false, true) {
		slog.Debug("transcription tick skipped: previous tick in flight", "match_id", l.cfg.MatchID)
		return
	}
	defer l.busy.Store(false)

	audio := l.audio.DrainAudio()
	if len(audio) == 0 {
		return
	}
	elapsed := l.audio.Elapsed()

	text, err := l.stt.Transcribe(ctx, audio, l.cfg.Language)
	if err != nil {
		slog.Warn("transcription call failed", "error", err, "match_id", l.cfg.MatchID, "audio_bytes", len(audio))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	l.appendTranscript(text)
	l.notifier.TranscriptChunk(ctx, l.cfg.MatchID, text)

	home, away := l.match.Teams()
	homeScore, awayScore := l.match.Scoreboard()
	minute := int(elapsed) / 60
	candidates, err := l.ext.Extract(ctx, extractor.Input{
		Text:      text,
		HomeTeam:  home,
		AwayTeam:  away,
		HomeScore: homeScore,
		AwayScore: awayScore,
		Minute:    minute,
	})
	if err != nil {
		slog.Warn("incident extraction failed", "error", err, "match_id", l.cfg.MatchID)
		return
	}

	for _, c := range candidates {
		if _, err := l.sink.Add(ctx, incident.Candidate{
			Type:        c.Type,
			Description: c.Description,
			Confidence:  c.Confidence,
			Minute:      minute,
			Second:      int(elapsed) % 60,
			EventMs:     int64(elapsed * 1000),
			VideoSecond: elapsed,
			Source:      incident.SourceDetected,
		}); err != nil {
			slog.Error("failed to register incident candidate", "error", err, "match_id", l.cfg.MatchID, "type", c.Type)
		}
	}
}

func (l *Loop) appendTranscript(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transcript.Len() > 0 {
		l.transcript.WriteString("\n")
	}
	l.transcript.WriteString(text)
	l.words += len(strings.Fields(text))
	l.dirty = true
}

// SaveNow persists the transcript buffer; called on the autosave tick and
// on pause.
func (l *Loop) SaveNow(ctx context.Context) {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return
	}
	text := l.transcript.String()
	l.dirty = false
	l.mu.Unlock()

	if err := l.store.SaveMatchTranscript(ctx, l.cfg.MatchID, text); err != nil {
		slog.Error("failed to autosave transcript", "error", err, "match_id", l.cfg.MatchID)
		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
	}
}

func (l *Loop) Transcript() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transcript.String()
}

func (l *Loop) Words() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.words
}
