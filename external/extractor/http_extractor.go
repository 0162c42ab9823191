package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pitchlab/matchclip/internal/extractor"
)

const requestTimeout = 30 * time.Second

type extractRequest struct {
	Text      string `json:"text"`
	HomeTeam  string `json:"homeTeam"`
	AwayTeam  string `json:"awayTeam"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Minute    int    `json:"minute"`
}

type extractResponse struct {
	Events []struct {
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"events"`
}

// HTTPExtractor posts transcript fragments to the event extraction service
// and maps its response into incident candidates.
type HTTPExtractor struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPExtractor(url, apiKey string) extractor.Extractor {
	return &HTTPExtractor{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, input extractor.Input) ([]extractor.Candidate, error) {
	b, err := json.Marshal(extractRequest{
		Text:      input.Text,
		HomeTeam:  input.HomeTeam,
		AwayTeam:  input.AwayTeam,
		HomeScore: input.HomeScore,
		AwayScore: input.AwayScore,
		Minute:    input.Minute,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("extractor returned malformed response: %w", err)
	}

	candidates := make([]extractor.Candidate, 0, len(parsed.Events))
	for _, ev := range parsed.Events {
		if ev.Type == "" {
			continue
		}
		candidates = append(candidates, extractor.Candidate{
			Type:        ev.Type,
			Description: ev.Description,
			Confidence:  ev.Confidence,
		})
	}
	return candidates, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
