package capture

import (
	"bytes"
	"context"
	"testing"

	"github.com/pitchlab/matchclip/internal/capture"
)

func TestPause_KeepsBytesCapturedBeforePause(t *testing.T) {
	h := &ffmpegHandle{mimeType: "video/mp4"}
	h.drain(bytes.NewReader([]byte("live play")))

	if err := h.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	chunk, err := h.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(chunk) != "live play" {
		t.Fatalf("expected pre-pause bytes preserved, got %q", chunk)
	}
}

func TestDrain_DropsBytesWhilePaused(t *testing.T) {
	h := &ffmpegHandle{mimeType: "video/mp4"}
	if err := h.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	h.drain(bytes.NewReader([]byte("paused play")))

	chunk, err := h.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(chunk) != 0 {
		t.Fatalf("expected paused bytes dropped, got %q", chunk)
	}
}

func TestResume_RestoresCapture(t *testing.T) {
	h := &ffmpegHandle{mimeType: "video/mp4"}
	if err := h.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	h.drain(bytes.NewReader([]byte("second half")))

	chunk, err := h.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(chunk) != "second half" {
		t.Fatalf("expected post-resume bytes captured, got %q", chunk)
	}
}

func TestOpen_RequiresInputURL(t *testing.T) {
	d := NewFFmpegDevice("")
	if _, err := d.Open(context.Background(), capture.Source{}); err == nil {
		t.Fatal("expected error for empty input url")
	}
}
