package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/segment"
)

// RollingWindow keeps the last K capture chunks as a low-latency clip
// source: fresh incidents usually resolve here before segment rotation.
type RollingWindow struct {
	mu       sync.Mutex
	max      int
	interval float64
	chunks   []capture.Chunk
}

func NewRollingWindow(maxChunks int, chunkInterval time.Duration) *RollingWindow {
	return &RollingWindow{max: maxChunks, interval: chunkInterval.Seconds()}
}

func (w *RollingWindow) Append(c capture.Chunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = append(w.chunks, c)
	if len(w.chunks) > w.max {
		w.chunks = w.chunks[len(w.chunks)-w.max:]
	}
}

func (w *RollingWindow) Name() string { return "rolling-window" }

// Resolve yields data only when the window fully covers [from, to].
func (w *RollingWindow) Resolve(from, to float64) ([]byte, float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.chunks) == 0 {
		return nil, 0, false
	}
	first := w.chunks[0].Offset
	last := w.chunks[len(w.chunks)-1].Offset + w.interval
	if first > from || last < to {
		return nil, 0, false
	}
	var out []byte
	for _, c := range w.chunks {
		out = append(out, c.Data...)
	}
	return out, first, true
}

// Accumulator holds every chunk of the session: the last-resort clip source
// and the final-merge source.
type Accumulator struct {
	mu   sync.Mutex
	data []byte
}

func (a *Accumulator) Append(b []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = append(a.data, b...)
}

func (a *Accumulator) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

func (a *Accumulator) Name() string { return "session-accumulator" }

func (a *Accumulator) Resolve(_, _ float64) ([]byte, float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.data) == 0 {
		return nil, 0, false
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out, 0, true
}

// AudioDrain buffers audio between transcription ticks; every tick empties
// it, unlike the session accumulator.
type AudioDrain struct {
	mu   sync.Mutex
	data []byte
}

func (d *AudioDrain) Append(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = append(d.data, b...)
}

func (d *AudioDrain) Drain() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.data
	d.data = nil
	return out
}

// segmentSource adapts the segment buffer to the clip engine's source tier.
type segmentSource struct {
	buffer *segment.Buffer
}

func (s segmentSource) Name() string { return "segment-buffer" }

func (s segmentSource) Resolve(from, to float64) ([]byte, float64, bool) {
	return s.buffer.ResolveRange(from, to)
}

type RecorderConfig struct {
	ChunkInterval time.Duration
	RollingChunks int
}

// Recorder owns the capture handle and emits one chunk per tick into the
// segment buffer, the rolling window, the accumulator and the transcription
// drain. Elapsed seconds advance only while unpaused.
type Recorder struct {
	mu      sync.Mutex
	handle  capture.Handle
	buffer  *segment.Buffer
	rolling *RollingWindow
	accum   *Accumulator
	drain   *AudioDrain

	interval time.Duration
	elapsed  float64
	paused   bool
	stopped  bool
}

func NewRecorder(handle capture.Handle, buffer *segment.Buffer, cfg RecorderConfig) *Recorder {
	return &Recorder{
		handle:   handle,
		buffer:   buffer,
		rolling:  NewRollingWindow(cfg.RollingChunks, cfg.ChunkInterval),
		accum:    &Accumulator{},
		drain:    &AudioDrain{},
		interval: cfg.ChunkInterval,
	}
}

func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	slog.Info("capture loop started", "chunk_interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("capture loop stopped", "elapsed_seconds", r.Elapsed())
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Recorder) tick(ctx context.Context) {
	r.mu.Lock()
	if r.paused || r.stopped {
		r.mu.Unlock()
		return
	}
	offset := r.elapsed
	r.elapsed += r.interval.Seconds()
	r.mu.Unlock()

	data, err := r.handle.ReadChunk(ctx)
	if err != nil {
		slog.Warn("failed to read capture chunk", "error", err, "offset", offset)
		return
	}
	if len(data) == 0 {
		return
	}

	r.buffer.AddChunk(data, offset)
	r.rolling.Append(capture.Chunk{Data: data, Offset: offset})
	r.accum.Append(data)
	r.drain.Append(data)
}

func (r *Recorder) Pause() {
	r.mu.Lock()
	if r.paused || r.stopped {
		r.mu.Unlock()
		return
	}
	r.paused = true
	r.mu.Unlock()
	if err := r.handle.Pause(); err != nil {
		slog.Warn("capture pause failed", "error", err)
	}
	slog.Info("capture paused", "elapsed_seconds", r.Elapsed())
}

func (r *Recorder) Resume() {
	r.mu.Lock()
	if !r.paused || r.stopped {
		r.mu.Unlock()
		return
	}
	r.paused = false
	r.mu.Unlock()
	if err := r.handle.Resume(); err != nil {
		slog.Warn("capture resume failed", "error", err)
	}
	slog.Info("capture resumed", "elapsed_seconds", r.Elapsed())
}

// Stop flushes the pending segment and tears the capture handle down.
// Safe to call twice.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	r.buffer.Flush()
	if err := r.handle.Close(); err != nil {
		return err
	}
	return nil
}

func (r *Recorder) Elapsed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

func (r *Recorder) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// DrainAudio empties the transcription drain buffer.
func (r *Recorder) DrainAudio() []byte {
	return r.drain.Drain()
}

func (r *Recorder) Rolling() *RollingWindow { return r.rolling }

func (r *Recorder) Accumulator() *Accumulator { return r.accum }
