package extractor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	internalextractor "github.com/pitchlab/matchclip/internal/extractor"
)

func TestExtract_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"type":"goal","description":"Arsenal score","confidence":0.92},{"type":"","description":"noise","confidence":0.1}]}`))
	}))
	defer server.Close()

	e := NewHTTPExtractor(server.URL, "secret-key")
	got, err := e.Extract(context.Background(), internalextractor.Input{
		Text:      "what a strike from Arsenal",
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		HomeScore: 1,
		Minute:    23,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Fatalf("unexpected authorization header: %s", gotAuth)
	}
	if gotBody["text"] != "what a strike from Arsenal" {
		t.Fatalf("unexpected text field: %v", gotBody["text"])
	}
	if gotBody["minute"] != float64(23) {
		t.Fatalf("unexpected minute field: %v", gotBody["minute"])
	}

	// Typeless events are dropped.
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Type != "goal" || got[0].Confidence != 0.92 {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestExtract_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	e := NewHTTPExtractor(server.URL, "")
	if _, err := e.Extract(context.Background(), internalextractor.Input{Text: "kick off"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestExtract_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	e := NewHTTPExtractor(server.URL, "")
	if _, err := e.Extract(context.Background(), internalextractor.Input{Text: "kick off"}); err == nil {
		t.Fatal("expected error for malformed response")
	}
}
