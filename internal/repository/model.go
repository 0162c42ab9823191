package repository

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusCompleted MatchStatus = "completed"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

type Match struct {
	ID         string
	HomeTeam   string
	AwayTeam   string
	HomeScore  int
	AwayScore  int
	Status     MatchStatus
	Transcript string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type IncidentMetadata struct {
	EventMs     int64   `json:"eventMs"`
	VideoSecond float64 `json:"videoSecond"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

type Incident struct {
	ID             string
	MatchID        string
	VideoID        string
	EventType      string
	Minute         int
	Second         int
	Description    string
	ApprovalStatus ApprovalStatus
	ClipURL        string
	Metadata       IncidentMetadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Video struct {
	ID              string
	MatchID         string
	URL             string
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Report struct {
	ID              string
	MatchID         string
	IncidentCount   int
	ClipCount       int
	DurationSeconds float64
	TranscriptWords int
	CreatedAt       time.Time
}
