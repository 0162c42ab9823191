package transcriber

import "context"

// Transcriber converts a batch of encoded audio into text. An empty string
// with a nil error means no speech was detected; errors mean the service
// call itself failed.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}
