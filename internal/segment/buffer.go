package segment

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pitchlab/matchclip/internal/capture"
)

// Segment is a closed, time-bounded group of captured chunks. Adjacent
// segments share a configured overlap so any timestamp stays recoverable
// from at most two retained segments.
type Segment struct {
	ID       int
	Start    float64
	End      float64
	Chunks   []capture.Chunk
	Uploaded bool
}

func (s *Segment) Bytes() []byte {
	var n int
	for _, c := range s.Chunks {
		n += len(c.Data)
	}
	out := make([]byte, 0, n)
	for _, c := range s.Chunks {
		out = append(out, c.Data...)
	}
	return out
}

type ReadyFunc func(seg *Segment)

type Config struct {
	Duration    time.Duration
	Overlap     time.Duration
	MaxSegments int
	OnReady     ReadyFunc
}

// Buffer is a rolling, memory-bounded store of capture chunks grouped into
// overlapping time-windowed segments. All mutation is serialized on one
// mutex so the capture tick, flush and range reads never observe a
// half-rotated state.
type Buffer struct {
	mu       sync.Mutex
	cfg      Config
	started  bool
	active   *Segment
	retained []*Segment
	nextID   int
}

func New(cfg Config) (*Buffer, error) {
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %v", cfg.Duration)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Duration {
		return nil, fmt.Errorf("segment overlap %v must be shorter than duration %v", cfg.Overlap, cfg.Duration)
	}
	if cfg.MaxSegments < 1 {
		return nil, fmt.Errorf("max segments must be at least 1, got %d", cfg.MaxSegments)
	}
	return &Buffer{cfg: cfg}, nil
}

// Start opens the first active segment at the given offset.
func (b *Buffer) Start(epoch float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.active = b.newSegment(epoch)
}

func (b *Buffer) newSegment(start float64) *Segment {
	seg := &Segment{ID: b.nextID, Start: start}
	b.nextID++
	return seg
}

// AddChunk appends to the active segment and rotates once the segment's
// nominal duration has elapsed. The closed segment is handed to OnReady on
// its own goroutine so ingestion is never blocked by the upload path.
func (b *Buffer) AddChunk(data []byte, offset float64) {
	b.mu.Lock()
	if b.active == nil {
		if !b.started {
			b.mu.Unlock()
			return
		}
		b.active = b.newSegment(offset)
	}

	var closed *Segment
	if offset-b.active.Start >= b.cfg.Duration.Seconds() {
		closed = b.rotateLocked(offset)
	}
	b.active.Chunks = append(b.active.Chunks, capture.Chunk{Data: data, Offset: offset})
	b.mu.Unlock()

	if closed != nil && b.cfg.OnReady != nil {
		go b.cfg.OnReady(closed)
	}
}

// rotateLocked closes the active segment and opens its successor, seeded
// with the trailing overlap chunks so the new window starts in the past.
func (b *Buffer) rotateLocked(offset float64) *Segment {
	closed := b.active
	closed.End = offset
	b.retained = append(b.retained, closed)

	start := offset - b.cfg.Overlap.Seconds()
	if start < 0 {
		start = 0
	}
	next := b.newSegment(start)
	for _, c := range closed.Chunks {
		if c.Offset >= start {
			next.Chunks = append(next.Chunks, c)
		}
	}
	b.active = next
	b.evictLocked()
	return closed
}

func (b *Buffer) evictLocked() {
	for len(b.retained) > b.cfg.MaxSegments {
		dropped := false
		for i, seg := range b.retained {
			if seg.Uploaded {
				b.retained = append(b.retained[:i], b.retained[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

// SegmentForTime returns the retained or active segment containing t, or the
// most recent segment when t exceeds everything retained.
func (b *Buffer) SegmentForTime(t float64) *Segment {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, seg := range b.retained {
		if t >= seg.Start && t < seg.End {
			return seg
		}
	}
	if b.active != nil {
		return b.active
	}
	if len(b.retained) > 0 {
		return b.retained[len(b.retained)-1]
	}
	return nil
}

// BlobForRange concatenates the chunks covering [from, to] across every
// overlapping retained/active segment. Shared overlap chunks are emitted
// once. Returns nil when no segment overlaps the range.
func (b *Buffer) BlobForRange(from, to float64) []byte {
	data, _, _ := b.ResolveRange(from, to)
	return data
}

// ResolveRange is BlobForRange plus the absolute offset of the first
// returned chunk, so callers can compute a window-relative position.
func (b *Buffer) ResolveRange(from, to float64) ([]byte, float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[float64]capture.Chunk)
	overlapped := false
	collect := func(seg *Segment) {
		end := seg.End
		if seg == b.active {
			end = math.Inf(1)
		}
		if end < from || seg.Start > to {
			return
		}
		overlapped = true
		for _, c := range seg.Chunks {
			seen[c.Offset] = c
		}
	}
	for _, seg := range b.retained {
		collect(seg)
	}
	if b.active != nil {
		collect(b.active)
	}
	if !overlapped || len(seen) == 0 {
		return nil, 0, false
	}

	offsets := make([]float64, 0, len(seen))
	for off := range seen {
		offsets = append(offsets, off)
	}
	sort.Float64s(offsets)

	// Include the chunk straddling the range start: the last chunk at or
	// before `from`, then everything up to `to`.
	startIdx := 0
	for i, off := range offsets {
		if off <= from {
			startIdx = i
		}
	}
	var out []byte
	for _, off := range offsets[startIdx:] {
		if off > to {
			break
		}
		out = append(out, seen[off].Data...)
	}
	if len(out) == 0 {
		return nil, 0, false
	}
	return out, offsets[startIdx], true
}

// Flush synchronously closes and emits the active segment. A second call
// with nothing pending is a no-op.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if b.active == nil || len(b.active.Chunks) == 0 {
		b.active = nil
		b.mu.Unlock()
		return
	}
	closed := b.active
	last := closed.Chunks[len(closed.Chunks)-1]
	closed.End = last.Offset
	b.retained = append(b.retained, closed)
	b.active = nil
	b.evictLocked()
	b.mu.Unlock()

	if b.cfg.OnReady != nil {
		b.cfg.OnReady(closed)
	}
}

// MarkUploaded flags a retained segment as evictable. Eviction runs here as
// well as at rotation so a late upload acknowledgment frees memory without
// waiting for the next segment boundary.
func (b *Buffer) MarkUploaded(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, seg := range b.retained {
		if seg.ID == id {
			seg.Uploaded = true
			b.evictLocked()
			return
		}
	}
}

// Retained returns the retained segment count, for finalization reporting.
func (b *Buffer) Retained() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.retained)
}
