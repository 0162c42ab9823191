package repository

import "context"

type CreateMatchInput struct {
	HomeTeam string
	AwayTeam string
}

type CreateIncidentInput struct {
	ID             string
	MatchID        string
	VideoID        string
	EventType      string
	Minute         int
	Second         int
	Description    string
	ApprovalStatus ApprovalStatus
	Metadata       IncidentMetadata
}

type CreateVideoInput struct {
	MatchID         string
	URL             string
	DurationSeconds float64
}

type CreateReportInput struct {
	MatchID         string
	IncidentCount   int
	ClipCount       int
	DurationSeconds float64
	TranscriptWords int
}

type MatchRepository interface {
	CreateMatch(ctx context.Context, input CreateMatchInput) (*Match, error)
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	UpdateMatchFields(ctx context.Context, matchID string, fields map[string]any) error
	SaveMatchTranscript(ctx context.Context, matchID, transcript string) error
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, input CreateIncidentInput) (*Incident, error)
	UpdateIncidentFields(ctx context.Context, incidentID string, fields map[string]any) error
	DeleteIncident(ctx context.Context, incidentID string) error
	ListIncidentsByMatch(ctx context.Context, matchID string) ([]Incident, error)
}

type VideoRepository interface {
	CreateVideo(ctx context.Context, input CreateVideoInput) (*Video, error)
	UpdateVideoFields(ctx context.Context, videoID string, fields map[string]any) error
	GetVideoByMatch(ctx context.Context, matchID string) (*Video, error)
}

type ReportRepository interface {
	CreateReport(ctx context.Context, input CreateReportInput) (*Report, error)
}

type Repository interface {
	MatchRepository
	IncidentRepository
	VideoRepository
	ReportRepository
}
