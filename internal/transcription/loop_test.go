package transcription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitchlab/matchclip/internal/extractor"
	"github.com/pitchlab/matchclip/internal/incident"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeAudio struct {
	mu      sync.Mutex
	pending []byte
	elapsed float64
	paused  bool
}

func (f *fakeAudio) DrainAudio() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *fakeAudio) Elapsed() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.elapsed }
func (f *fakeAudio) Paused() bool     { f.mu.Lock(); defer f.mu.Unlock(); return f.paused }

func (f *fakeAudio) feed(b []byte, elapsed float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, b...)
	f.elapsed = elapsed
}

type fakeSTT struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	block chan struct{}
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.text, f.err
}

type fakeExtractor struct {
	mu         sync.Mutex
	candidates []extractor.Candidate
	err        error
	lastInput  extractor.Input
	calls      int
}

func (f *fakeExtractor) Extract(_ context.Context, input extractor.Input) ([]extractor.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastInput = input
	return f.candidates, f.err
}

type fakeSink struct {
	mu    sync.Mutex
	added []incident.Candidate
}

func (f *fakeSink) Add(_ context.Context, c incident.Candidate) (*repository.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, c)
	return &repository.Incident{ID: "inc"}, nil
}

type fakeMatchState struct{}

func (fakeMatchState) Teams() (string, string) { return "Arsenal", "Chelsea" }
func (fakeMatchState) Scoreboard() (int, int)  { return 1, 0 }

type fakeStore struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeStore) SaveMatchTranscript(_ context.Context, _ string, transcript string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, transcript)
	return nil
}

type noopNotifier struct {
	mu     sync.Mutex
	chunks []string
}

func (n *noopNotifier) IncidentDetected(context.Context, notify.IncidentEvent) {}
func (n *noopNotifier) ApprovalOutcome(context.Context, notify.ApprovalEvent)  {}
func (n *noopNotifier) TranscriptChunk(_ context.Context, _, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chunks = append(n.chunks, text)
}
func (n *noopNotifier) SessionSummary(context.Context, notify.SummaryEvent) {}

func newTestLoop(audio *fakeAudio, stt *fakeSTT, ext *fakeExtractor, sink *fakeSink, store *fakeStore) *Loop {
	return NewLoop(Config{
		MatchID:          "match-1",
		Language:         "en-US",
		Interval:         10 * time.Second,
		AutosaveInterval: 60 * time.Second,
	}, audio, stt, ext, sink, fakeMatchState{}, store, &noopNotifier{})
}

func TestTick_ForwardsCandidatesWithTimestamp(t *testing.T) {
	audio := &fakeAudio{}
	audio.feed([]byte("pcm"), 125)
	stt := &fakeSTT{text: "goal scored by Chelsea"}
	ext := &fakeExtractor{candidates: []extractor.Candidate{{Type: "goal", Description: "Chelsea score", Confidence: 0.9}}}
	sink := &fakeSink{}
	l := newTestLoop(audio, stt, ext, sink, &fakeStore{})

	l.tick(context.Background())

	require.Len(t, sink.added, 1)
	got := sink.added[0]
	require.Equal(t, "goal", got.Type)
	require.Equal(t, 2, got.Minute)
	require.Equal(t, 5, got.Second)
	require.InDelta(t, 125.0, got.VideoSecond, 0.001)
	require.Equal(t, incident.SourceDetected, got.Source)

	require.Equal(t, "Arsenal", ext.lastInput.HomeTeam)
	require.Equal(t, 1, ext.lastInput.HomeScore)
	require.Equal(t, 2, ext.lastInput.Minute)
}

func TestTick_SkipsWhenAudioEmpty(t *testing.T) {
	stt := &fakeSTT{text: "anything"}
	l := newTestLoop(&fakeAudio{}, stt, &fakeExtractor{}, &fakeSink{}, &fakeStore{})

	l.tick(context.Background())

	require.Equal(t, 0, stt.calls)
}

func TestTick_SkipsWhenPaused(t *testing.T) {
	audio := &fakeAudio{paused: true}
	audio.pending = []byte("pcm")
	stt := &fakeSTT{text: "anything"}
	l := newTestLoop(audio, stt, &fakeExtractor{}, &fakeSink{}, &fakeStore{})

	l.tick(context.Background())

	require.Equal(t, 0, stt.calls)
}

func TestTick_SelfSkipsWhileInFlight(t *testing.T) {
	audio := &fakeAudio{}
	audio.feed([]byte("pcm"), 10)
	stt := &fakeSTT{text: "ok", block: make(chan struct{})}
	l := newTestLoop(audio, stt, &fakeExtractor{}, &fakeSink{}, &fakeStore{})

	done := make(chan struct{})
	go func() {
		l.tick(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool {
		stt.mu.Lock()
		defer stt.mu.Unlock()
		return stt.calls == 1
	}, time.Second, time.Millisecond)

	audio.feed([]byte("more"), 20)
	l.tick(context.Background())

	stt.mu.Lock()
	require.Equal(t, 1, stt.calls)
	stt.mu.Unlock()

	close(stt.block)
	<-done
}

func TestTick_CollaboratorFailuresDoNotAbort(t *testing.T) {
	audio := &fakeAudio{}
	audio.feed([]byte("pcm"), 10)
	stt := &fakeSTT{err: errors.New("service unavailable")}
	ext := &fakeExtractor{}
	l := newTestLoop(audio, stt, ext, &fakeSink{}, &fakeStore{})

	l.tick(context.Background())
	require.Equal(t, 0, ext.calls)

	// Next tick proceeds normally.
	stt.err = nil
	stt.text = "free kick taken"
	audio.feed([]byte("pcm"), 20)
	l.tick(context.Background())
	require.Equal(t, 1, ext.calls)
	require.Equal(t, 3, l.Words())
}

func TestTick_NoSpeechAddsNothing(t *testing.T) {
	audio := &fakeAudio{}
	audio.feed([]byte("pcm"), 10)
	stt := &fakeSTT{text: "  "}
	ext := &fakeExtractor{}
	l := newTestLoop(audio, stt, ext, &fakeSink{}, &fakeStore{})

	l.tick(context.Background())

	require.Equal(t, 0, ext.calls)
	require.Equal(t, "", l.Transcript())
}

func TestSaveNow_PersistsOnlyWhenDirty(t *testing.T) {
	audio := &fakeAudio{}
	audio.feed([]byte("pcm"), 10)
	stt := &fakeSTT{text: "kick off"}
	store := &fakeStore{}
	l := newTestLoop(audio, stt, &fakeExtractor{}, &fakeSink{}, store)

	l.tick(context.Background())
	l.SaveNow(context.Background())
	l.SaveNow(context.Background())

	require.Equal(t, []string{"kick off"}, store.saved)
}
