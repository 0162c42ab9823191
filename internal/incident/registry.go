package incident

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pitchlab/matchclip/internal/clip"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
)

const (
	SourceDetected = "detected"
	SourceManual   = "manual"

	EventTypeGoal = "goal"
)

// ClipGenerator is the clip engine surface the registry drives on approval.
type ClipGenerator interface {
	Generate(ctx context.Context, req clip.Request) (string, error)
}

type Candidate struct {
	Type        string
	Description string
	Confidence  float64
	Minute      int
	Second      int
	EventMs     int64
	VideoSecond float64
	Source      string
}

type Config struct {
	MatchID                 string
	HomeTeam                string
	AwayTeam                string
	HomeScore               int
	AwayScore               int
	DedupeWindowSec         float64
	GoalConfidenceThreshold float64
	ClipMaxAttempts         int
	ClipBackoffBase         time.Duration
}

// Registry tracks pending/approved/rejected incidents for one live session,
// owns the optimistic scoreboard, and runs the bounded-retry clip saga on
// approval. All local state mutates under one mutex; clip generation itself
// runs outside the lock so detection never waits on it.
type Registry struct {
	cfg      Config
	repo     repository.IncidentRepository
	clips    ClipGenerator
	notifier notify.Notifier

	mu         sync.Mutex
	incidents  map[string]*repository.Incident
	homeScore  int
	awayScore  int
	attributed map[string]string

	sleep func(time.Duration)
}

func NewRegistry(cfg Config, repo repository.IncidentRepository, clips ClipGenerator, notifier notify.Notifier) *Registry {
	if cfg.DedupeWindowSec <= 0 {
		cfg.DedupeWindowSec = 30
	}
	if cfg.ClipMaxAttempts <= 0 {
		cfg.ClipMaxAttempts = 3
	}
	if cfg.ClipBackoffBase <= 0 {
		cfg.ClipBackoffBase = 2 * time.Second
	}
	return &Registry{
		cfg:        cfg,
		repo:       repo,
		clips:      clips,
		notifier:   notifier,
		incidents:  make(map[string]*repository.Incident),
		homeScore:  cfg.HomeScore,
		awayScore:  cfg.AwayScore,
		attributed: make(map[string]string),
	}
}

// Add registers a candidate. Returns (nil, nil) when the candidate is
// dropped as a duplicate of a nearby pending incident of the same type.
func (r *Registry) Add(ctx context.Context, c Candidate) (*repository.Incident, error) {
	status := repository.ApprovalStatusPending
	if c.Source == SourceManual {
		status = repository.ApprovalStatusApproved
	}

	r.mu.Lock()
	if r.isDuplicateLocked(c) {
		r.mu.Unlock()
		slog.Info("dropping duplicate incident candidate", "match_id", r.cfg.MatchID, "type", c.Type, "minute", c.Minute, "second", c.Second)
		return nil, nil
	}

	inc := &repository.Incident{
		ID:             ulid.Make().String(),
		MatchID:        r.cfg.MatchID,
		EventType:      c.Type,
		Minute:         c.Minute,
		Second:         c.Second,
		Description:    c.Description,
		ApprovalStatus: status,
		Metadata: repository.IncidentMetadata{
			EventMs:     c.EventMs,
			VideoSecond: c.VideoSecond,
			Confidence:  c.Confidence,
			Source:      c.Source,
		},
	}
	r.incidents[inc.ID] = inc

	if c.Type == EventTypeGoal && c.Confidence >= r.cfg.GoalConfidenceThreshold {
		if team := r.inferScoringTeam(c.Description); team != "" {
			r.incrementLocked(team)
			r.attributed[inc.ID] = team
			slog.Info("scoreboard incremented for detected goal", "incident_id", inc.ID, "team", team, "home", r.homeScore, "away", r.awayScore)
		}
	}
	r.mu.Unlock()

	if _, err := r.repo.CreateIncident(ctx, repository.CreateIncidentInput{
		ID:             inc.ID,
		MatchID:        inc.MatchID,
		EventType:      inc.EventType,
		Minute:         inc.Minute,
		Second:         inc.Second,
		Description:    inc.Description,
		ApprovalStatus: inc.ApprovalStatus,
		Metadata:       inc.Metadata,
	}); err != nil {
		slog.Error("failed to persist incident", "error", err, "incident_id", inc.ID)
	}

	r.notifier.IncidentDetected(ctx, notify.IncidentEvent{
		MatchID:     inc.MatchID,
		IncidentID:  inc.ID,
		EventType:   inc.EventType,
		Description: inc.Description,
		Minute:      inc.Minute,
		Second:      inc.Second,
		Source:      c.Source,
	})
	return inc, nil
}

func (r *Registry) isDuplicateLocked(c Candidate) bool {
	t := float64(c.Minute*60 + c.Second)
	for _, inc := range r.incidents {
		if inc.ApprovalStatus != repository.ApprovalStatusPending || inc.EventType != c.Type {
			continue
		}
		existing := float64(inc.Minute*60 + inc.Second)
		if math.Abs(t-existing) <= r.cfg.DedupeWindowSec {
			return true
		}
	}
	return false
}

// inferScoringTeam matches the description against the known team names.
// When both names appear the home team wins the tie; this mirrors the
// documented default-to-home fallback.
func (r *Registry) inferScoringTeam(description string) string {
	desc := strings.ToLower(description)
	home := r.cfg.HomeTeam != "" && strings.Contains(desc, strings.ToLower(r.cfg.HomeTeam))
	away := r.cfg.AwayTeam != "" && strings.Contains(desc, strings.ToLower(r.cfg.AwayTeam))
	switch {
	case home:
		return "home"
	case away:
		return "away"
	default:
		return ""
	}
}

func (r *Registry) incrementLocked(team string) {
	if team == "home" {
		r.homeScore++
		return
	}
	r.awayScore++
}

func (r *Registry) reverseLocked(team string) {
	if team == "home" {
		r.homeScore--
		return
	}
	r.awayScore--
}

// Approve moves the incident to approved and drives clip generation with
// bounded retries. It does not return until the clip succeeds or the
// compensating rollback completes.
func (r *Registry) Approve(ctx context.Context, incidentID string) error {
	r.mu.Lock()
	inc, ok := r.incidents[incidentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("incident %s not found", incidentID)
	}
	inc.ApprovalStatus = repository.ApprovalStatusApproved
	videoSecond := inc.Metadata.VideoSecond
	r.mu.Unlock()

	if err := r.repo.UpdateIncidentFields(ctx, incidentID, map[string]any{"approval_status": string(repository.ApprovalStatusApproved)}); err != nil {
		slog.Error("failed to persist approval", "error", err, "incident_id", incidentID)
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.ClipMaxAttempts; attempt++ {
		url, err := r.clips.Generate(ctx, clip.Request{IncidentID: incidentID, VideoSecond: videoSecond})
		if err == nil {
			r.setClipURL(ctx, incidentID, url)
			r.notifier.ApprovalOutcome(ctx, notify.ApprovalEvent{
				MatchID:    r.cfg.MatchID,
				IncidentID: incidentID,
				Approved:   true,
				ClipURL:    url,
			})
			return nil
		}
		lastErr = err
		slog.Warn("clip generation attempt failed", "error", err, "incident_id", incidentID, "attempt", attempt)
		if attempt < r.cfg.ClipMaxAttempts {
			r.sleepFor(time.Duration(attempt) * r.cfg.ClipBackoffBase)
		}
	}

	r.rollback(ctx, incidentID)
	return fmt.Errorf("clip generation exhausted after %d attempts: %w", r.cfg.ClipMaxAttempts, lastErr)
}

// rollback compensates an exhausted clip saga: the persisted record is
// deleted, the incident leaves the approved set, and any scoreboard
// increment attributed to it is reversed exactly once.
func (r *Registry) rollback(ctx context.Context, incidentID string) {
	if err := r.repo.DeleteIncident(ctx, incidentID); err != nil {
		slog.Error("failed to delete incident during rollback", "error", err, "incident_id", incidentID)
	}

	r.mu.Lock()
	delete(r.incidents, incidentID)
	if team, ok := r.attributed[incidentID]; ok {
		r.reverseLocked(team)
		delete(r.attributed, incidentID)
		slog.Info("scoreboard increment reversed", "incident_id", incidentID, "team", team, "home", r.homeScore, "away", r.awayScore)
	}
	r.mu.Unlock()

	r.notifier.ApprovalOutcome(ctx, notify.ApprovalEvent{
		MatchID:    r.cfg.MatchID,
		IncidentID: incidentID,
		Approved:   false,
		Reason:     fmt.Sprintf("clip not generated after %d attempts", r.cfg.ClipMaxAttempts),
	})
}

func (r *Registry) setClipURL(ctx context.Context, incidentID, url string) {
	r.mu.Lock()
	if inc, ok := r.incidents[incidentID]; ok {
		inc.ClipURL = url
	}
	r.mu.Unlock()
	if err := r.repo.UpdateIncidentFields(ctx, incidentID, map[string]any{"clip_url": url}); err != nil {
		slog.Error("failed to persist clip url", "error", err, "incident_id", incidentID)
	}
}

// Edit applies a patch to local state and persists it best-effort.
func (r *Registry) Edit(ctx context.Context, incidentID string, fields map[string]any) error {
	r.mu.Lock()
	inc, ok := r.incidents[incidentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("incident %s not found", incidentID)
	}
	for key, value := range fields {
		switch key {
		case "description":
			if s, ok := value.(string); ok {
				inc.Description = s
			}
		case "event_type":
			if s, ok := value.(string); ok {
				inc.EventType = s
			}
		case "minute":
			if n, ok := value.(int); ok {
				inc.Minute = n
			}
		case "second":
			if n, ok := value.(int); ok {
				inc.Second = n
			}
		}
	}
	r.mu.Unlock()

	if err := r.repo.UpdateIncidentFields(ctx, incidentID, fields); err != nil {
		slog.Error("failed to persist incident edit", "error", err, "incident_id", incidentID)
	}
	return nil
}

// Remove drops the incident from local state and persists best-effort.
func (r *Registry) Remove(ctx context.Context, incidentID string) error {
	r.mu.Lock()
	_, ok := r.incidents[incidentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("incident %s not found", incidentID)
	}
	delete(r.incidents, incidentID)
	r.mu.Unlock()

	if err := r.repo.DeleteIncident(ctx, incidentID); err != nil {
		slog.Error("failed to delete incident", "error", err, "incident_id", incidentID)
	}
	return nil
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.incidents)
}

func (r *Registry) Scoreboard() (home, away int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.homeScore, r.awayScore
}

// Approved returns copies of the approved incidents.
func (r *Registry) Approved() []repository.Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Incident
	for _, inc := range r.incidents {
		if inc.ApprovalStatus == repository.ApprovalStatusApproved {
			out = append(out, *inc)
		}
	}
	return out
}

func (r *Registry) Get(incidentID string) (repository.Incident, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[incidentID]
	if !ok {
		return repository.Incident{}, false
	}
	return *inc, true
}

// SetIncidentClipURL records a clip produced outside the approval saga,
// e.g. during finalization.
func (r *Registry) SetIncidentClipURL(incidentID, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inc, ok := r.incidents[incidentID]; ok {
		inc.ClipURL = url
	}
}

func (r *Registry) sleepFor(d time.Duration) {
	if r.sleep != nil {
		r.sleep(d)
		return
	}
	time.Sleep(d)
}
