package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchlab/matchclip/internal/repository"
)

type matchCreatingRepo struct {
	repository.Repository
	created []repository.CreateMatchInput
}

func (r *matchCreatingRepo) CreateMatch(_ context.Context, input repository.CreateMatchInput) (*repository.Match, error) {
	r.created = append(r.created, input)
	return &repository.Match{
		ID:       "match-42",
		HomeTeam: input.HomeTeam,
		AwayTeam: input.AwayTeam,
		Status:   repository.MatchStatusScheduled,
	}, nil
}

func TestHandleCreateMatch_PersistsAndReturnsRecord(t *testing.T) {
	repo := &matchCreatingRepo{}
	handler := handleCreateMatch(repo)

	req := httptest.NewRequest(http.MethodPost, "/matches",
		strings.NewReader(`{"homeTeam":"Arsenal","awayTeam":"Chelsea"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.created) != 1 || repo.created[0].HomeTeam != "Arsenal" || repo.created[0].AwayTeam != "Chelsea" {
		t.Fatalf("unexpected create input: %+v", repo.created)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["matchId"] != "match-42" {
		t.Fatalf("unexpected match id: %v", body["matchId"])
	}
	if body["status"] != string(repository.MatchStatusScheduled) {
		t.Fatalf("unexpected status: %v", body["status"])
	}
}

func TestHandleCreateMatch_RejectsMissingTeams(t *testing.T) {
	repo := &matchCreatingRepo{}
	handler := handleCreateMatch(repo)

	req := httptest.NewRequest(http.MethodPost, "/matches",
		strings.NewReader(`{"homeTeam":"Arsenal"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no create call, got %+v", repo.created)
	}
}
