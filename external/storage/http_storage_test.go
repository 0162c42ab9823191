package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUpload_Success(t *testing.T) {
	var gotPath string
	var gotFilename string
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		gotPath = r.URL.Path
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		reader, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("failed to create multipart reader: %v", err)
		}
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("failed to read multipart part: %v", err)
		}
		if part.FormName() != "file" {
			t.Fatalf("unexpected form name: %s", part.FormName())
		}
		gotFilename = part.FileName()
		content, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("failed to read file body: %v", err)
		}
		gotBody = string(content)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/match-1/clips/clip.mp4"}`))
	}))
	defer server.Close()

	u := NewHTTPUploader(server.URL)
	url, err := u.Upload(context.Background(), "match-1", "clips", []byte("mp4 bytes"), "clip.mp4")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if url != "https://cdn.example.com/match-1/clips/clip.mp4" {
		t.Fatalf("unexpected url: %s", url)
	}
	if gotPath != "/match-1/clips" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotFilename != "clip.mp4" {
		t.Fatalf("unexpected filename: %s", gotFilename)
	}
	if gotBody != "mp4 bytes" {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestUpload_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u := NewHTTPUploader(server.URL)
	if _, err := u.Upload(context.Background(), "match-1", "clips", []byte("x"), "clip.mp4"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestUpload_MissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	u := NewHTTPUploader(server.URL)
	if _, err := u.Upload(context.Background(), "match-1", "clips", []byte("x"), "clip.mp4"); err == nil {
		t.Fatal("expected error when response lacks url")
	}
}
