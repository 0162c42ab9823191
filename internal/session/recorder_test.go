package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/segment"
)

func newTestRecorder(t *testing.T, handle capture.Handle, rollingChunks int) *Recorder {
	t.Helper()
	buffer, err := segment.New(segment.Config{
		Duration:    5 * time.Minute,
		Overlap:     time.Minute,
		MaxSegments: 3,
	})
	if err != nil {
		t.Fatalf("failed to build segment buffer: %v", err)
	}
	buffer.Start(0)
	return NewRecorder(handle, buffer, RecorderConfig{
		ChunkInterval: 5 * time.Second,
		RollingChunks: rollingChunks,
	})
}

func TestRollingWindow_DropsOldestBeyondCapacity(t *testing.T) {
	handle := &mockHandle{chunk: []byte("abcd")}
	r := newTestRecorder(t, handle, 6)

	for i := 0; i < 10; i++ {
		r.tick(context.Background())
	}

	// Only the last six chunks remain: offsets 20..45.
	if _, _, ok := r.Rolling().Resolve(10, 30); ok {
		t.Fatal("expected range starting before the window to be unresolvable")
	}
	blob, start, ok := r.Rolling().Resolve(25, 45)
	if !ok {
		t.Fatal("expected covered range to resolve")
	}
	if start != 20 {
		t.Fatalf("expected window start 20, got %v", start)
	}
	if len(blob) != 6*4 {
		t.Fatalf("expected 6 retained chunks, got %d bytes", len(blob))
	}
}

func TestAccumulator_KeepsEverythingDrainEmpties(t *testing.T) {
	handle := &mockHandle{chunk: []byte("abcd")}
	r := newTestRecorder(t, handle, 2)

	for i := 0; i < 5; i++ {
		r.tick(context.Background())
	}

	if got := r.DrainAudio(); len(got) != 5*4 {
		t.Fatalf("expected drain to hold all undrained bytes, got %d", len(got))
	}
	if got := r.DrainAudio(); len(got) != 0 {
		t.Fatalf("expected drain empty after draining, got %d bytes", len(got))
	}

	want := bytes.Repeat([]byte("abcd"), 5)
	if !bytes.Equal(r.Accumulator().Bytes(), want) {
		t.Fatal("expected accumulator unaffected by draining")
	}
}

func TestStop_FlushesOnceAndClosesHandle(t *testing.T) {
	handle := &mockHandle{chunk: []byte("abcd")}
	r := newTestRecorder(t, handle, 2)

	for i := 0; i < 3; i++ {
		r.tick(context.Background())
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()
	if handle.closeCnt != 1 {
		t.Fatalf("expected handle closed exactly once, got %d", handle.closeCnt)
	}

	// No further chunks after stop.
	r.tick(context.Background())
	if got := r.Elapsed(); got != 15 {
		t.Fatalf("expected elapsed frozen at 15 after stop, got %v", got)
	}
}
