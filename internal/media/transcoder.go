package media

import "context"

// Transcoder cuts short clips out of a captured byte stream and remuxes the
// full stream into a distributable artifact.
type Transcoder interface {
	ExtractClip(ctx context.Context, src []byte, startSec, durationSec float64) ([]byte, error)
	Remux(ctx context.Context, src []byte) ([]byte, error)
}
