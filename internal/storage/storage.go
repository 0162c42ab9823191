package storage

import "context"

// Uploader persists a binary object under a container/category and returns
// its public URL.
type Uploader interface {
	Upload(ctx context.Context, containerID, category string, body []byte, filename string) (string, error)
}
