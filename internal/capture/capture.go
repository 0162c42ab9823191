package capture

import "context"

// Chunk is one tick's worth of encoded audio/video with its offset in
// seconds from the session epoch.
type Chunk struct {
	Data   []byte
	Offset float64
}

type Source struct {
	InputURL  string
	AudioOnly bool
}

// Handle is an open capture stream. ReadChunk returns the bytes accumulated
// since the previous call; Pause/Resume must not lose data in between.
type Handle interface {
	ReadChunk(ctx context.Context) ([]byte, error)
	Pause() error
	Resume() error
	MimeType() string
	Close() error
}

type Device interface {
	Open(ctx context.Context, src Source) (Handle, error)
}
