package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pitchlab/matchclip/internal/storage"
)

const uploadTimeout = 2 * time.Minute

// HTTPUploader pushes binary artifacts to the storage service as multipart
// uploads at POST {base}/{container}/{category}.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUploader(baseURL string) storage.Uploader {
	return &HTTPUploader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: uploadTimeout},
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, containerID, category string, body []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(body); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s", u.baseURL, containerID, category)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return "", fmt.Errorf("storage returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("storage returned malformed response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("storage response missing url")
	}
	return parsed.URL, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
