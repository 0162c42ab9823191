package extractor

import "context"

type Input struct {
	Text      string
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	Minute    int
}

type Candidate struct {
	Type        string
	Description string
	Confidence  float64
}

// Extractor turns a transcript fragment plus match context into incident
// candidates.
type Extractor interface {
	Extract(ctx context.Context, input Input) ([]Candidate, error)
}
