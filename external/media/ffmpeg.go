package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pitchlab/matchclip/internal/media"
)

// FFmpegTranscoder shells out to ffmpeg, streaming the source over stdin and
// collecting the result from stdout. Fragmented MP4 output keeps the pipe
// seekless.
type FFmpegTranscoder struct {
	binaryPath string
}

func NewFFmpegTranscoder(binaryPath string) media.Transcoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpegTranscoder{binaryPath: binaryPath}
}

func (t *FFmpegTranscoder) ExtractClip(ctx context.Context, src []byte, startSec, durationSec float64) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-i", "pipe:0",
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}
	return t.run(ctx, src, args)
}

func (t *FFmpegTranscoder) Remux(ctx context.Context, src []byte) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}
	return t.run(ctx, src, args)
}

func (t *FFmpegTranscoder) run(ctx context.Context, src []byte, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	cmd.Stdin = bytes.NewReader(src)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("ffmpeg failed: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}
