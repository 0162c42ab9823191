package clip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pitchlab/matchclip/internal/media"
	"github.com/pitchlab/matchclip/internal/storage"
)

// Error kinds surfaced by Generate. Callers retry every kind except ErrBusy
// with the same policy.
var (
	ErrBusy            = errors.New("clip generation already in flight")
	ErrNoSourceData    = errors.New("no source yielded sufficient data for clip window")
	ErrTranscodeFailed = errors.New("clip transcode failed")
	ErrUploadFailed    = errors.New("clip upload failed")
)

// BinarySource resolves raw capture bytes covering a time window. start is
// the absolute offset of the first returned byte; sources may begin at
// different points of the session timeline.
type BinarySource interface {
	Name() string
	Resolve(from, to float64) (data []byte, start float64, ok bool)
}

type Config struct {
	MatchID         string
	Preroll         time.Duration
	Postroll        time.Duration
	MinSourceBytes  int
	DownloadTimeout time.Duration
}

type Request struct {
	IncidentID  string
	VideoSecond float64
	HintURL     string
}

// Engine extracts, encodes and uploads one incident clip at a time.
// Single-flight: a Generate call while another is in progress fails
// immediately with ErrBusy instead of queueing.
type Engine struct {
	cfg        Config
	sources    []BinarySource
	transcoder media.Transcoder
	uploader   storage.Uploader
	httpClient *http.Client
	inFlight   atomic.Bool
}

func NewEngine(cfg Config, sources []BinarySource, transcoder media.Transcoder, uploader storage.Uploader) *Engine {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		cfg:        cfg,
		sources:    sources,
		transcoder: transcoder,
		uploader:   uploader,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate resolves the best available source for the incident window,
// transcodes the clip and uploads it, returning the public URL.
func (e *Engine) Generate(ctx context.Context, req Request) (string, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer e.inFlight.Store(false)

	from := req.VideoSecond - e.cfg.Preroll.Seconds()
	if from < 0 {
		from = 0
	}
	to := req.VideoSecond + e.cfg.Postroll.Seconds()

	data, start, sourceName := e.resolveSource(ctx, from, to, req.HintURL)
	if data == nil {
		return "", fmt.Errorf("window [%.1fs, %.1fs]: %w", from, to, ErrNoSourceData)
	}
	slog.Info("clip source resolved", "incident_id", req.IncidentID, "source", sourceName, "bytes", len(data), "window_from", from, "window_to", to)

	relStart := from - start
	if relStart < 0 {
		relStart = 0
	}
	clipBytes, err := e.transcoder.ExtractClip(ctx, data, relStart, to-from)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	filename := fmt.Sprintf("clip-%s-%s.mp4", req.IncidentID, ulid.Make().String())
	url, err := e.uploader.Upload(ctx, e.cfg.MatchID, "clips", clipBytes, filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	slog.Info("clip uploaded", "incident_id", req.IncidentID, "url", url, "clip_bytes", len(clipBytes))
	return url, nil
}

// resolveSource tries each registered source in order, then the hint URL.
// The first source yielding at least MinSourceBytes wins.
func (e *Engine) resolveSource(ctx context.Context, from, to float64, hintURL string) ([]byte, float64, string) {
	for _, src := range e.sources {
		data, start, ok := src.Resolve(from, to)
		if !ok || len(data) < e.cfg.MinSourceBytes {
			continue
		}
		return data, start, src.Name()
	}
	if hintURL != "" {
		data, err := e.download(ctx, hintURL)
		if err != nil {
			slog.Warn("hint url download failed", "url", hintURL, "error", err)
		} else if len(data) >= e.cfg.MinSourceBytes {
			// The hint artifact covers the whole session, so its bytes
			// start at the session epoch.
			return data, 0, "hint-url"
		}
	}
	return nil, 0, ""
}

func (e *Engine) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hint download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
