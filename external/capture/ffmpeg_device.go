package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/pitchlab/matchclip/internal/capture"
)

const readBufferSize = 64 * 1024

// containerFormat is one entry of the ordered output preference list. The
// first format whose process starts wins.
type containerFormat struct {
	name     string
	mimeType string
	args     []string
}

var videoFormats = []containerFormat{
	{
		name:     "fmp4",
		mimeType: "video/mp4",
		args:     []string{"-c", "copy", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4"},
	},
	{
		name:     "mpegts",
		mimeType: "video/mp2t",
		args:     []string{"-c", "copy", "-f", "mpegts"},
	},
}

var audioFormats = []containerFormat{
	{
		name:     "adts",
		mimeType: "audio/aac",
		args:     []string{"-vn", "-c:a", "aac", "-f", "adts"},
	},
}

// FFmpegDevice opens a feed by spawning ffmpeg against the input URL and
// draining its stdout. One process per handle.
type FFmpegDevice struct {
	binaryPath string
}

func NewFFmpegDevice(binaryPath string) capture.Device {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpegDevice{binaryPath: binaryPath}
}

func (d *FFmpegDevice) Open(_ context.Context, src capture.Source) (capture.Handle, error) {
	if src.InputURL == "" {
		return nil, fmt.Errorf("capture source requires an input url")
	}

	formats := videoFormats
	if src.AudioOnly {
		formats = audioFormats
	}

	var lastErr error
	for _, format := range formats {
		args := []string{
			"-hide_banner", "-loglevel", "error",
			"-i", src.InputURL,
		}
		args = append(args, format.args...)
		args = append(args, "pipe:1")

		// The process must outlive the request that opened it, so it is
		// not bound to the caller's context.
		cmd := exec.Command(d.binaryPath, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			lastErr = err
			slog.Warn("capture format unavailable", "format", format.name, "error", err)
			continue
		}
		slog.Info("capture process started", "input_url", src.InputURL, "format", format.name, "audio_only", src.AudioOnly, "pid", cmd.Process.Pid)

		h := &ffmpegHandle{
			cmd:      cmd,
			mimeType: format.mimeType,
		}
		go h.drain(stdout)
		return h, nil
	}
	return nil, fmt.Errorf("failed to start ffmpeg: %w", lastErr)
}

type ffmpegHandle struct {
	cmd      *exec.Cmd
	mimeType string

	mu      sync.Mutex
	pending []byte
	paused  bool
	closed  bool
	readErr error
}

// drain accumulates stdout into the pending buffer until the next ReadChunk
// swaps it out. Bytes arriving while paused are dropped so paused play never
// reaches the pipeline.
func (h *ffmpegHandle) drain(stdout io.Reader) {
	reader := bufio.NewReaderSize(stdout, readBufferSize)
	buf := make([]byte, readBufferSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			h.mu.Lock()
			if !h.paused && !h.closed {
				h.pending = append(h.pending, buf[:n]...)
			}
			h.mu.Unlock()
		}
		if err != nil {
			h.mu.Lock()
			closed := h.closed
			if err != io.EOF {
				h.readErr = err
			}
			h.mu.Unlock()
			if !closed && err != io.EOF {
				slog.Warn("capture stream read failed", "error", err)
			}
			return
		}
	}
}

func (h *ffmpegHandle) ReadChunk(_ context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		err := h.readErr
		h.readErr = nil
		return nil, err
	}
	out := h.pending
	h.pending = nil
	return out, nil
}

// Pause stops new stdout bytes from entering the pending buffer. Bytes
// already captured before the pause stay readable; they belong to play
// that happened while live.
func (h *ffmpegHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
	return nil
}

func (h *ffmpegHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	return nil
}

func (h *ffmpegHandle) MimeType() string {
	return h.mimeType
}

func (h *ffmpegHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.pending = nil
	h.mu.Unlock()

	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	_ = h.cmd.Wait()
	slog.Info("capture process stopped")
	return nil
}
