package finalize

import (
	"context"
	"fmt"
	"log/slog"
)

// Step is one independently-caught unit of session finalization.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

type StepError struct {
	Step string
	Err  error
}

// Result is the best-effort summary of a finalized session.
type Result struct {
	VideoURL        string
	EventsCount     int
	TranscriptWords int
	DurationSeconds float64
	StepErrors      []StepError
}

// RunSteps executes every step in order. A failing or panicking step is
// logged and recorded, never aborting the remainder.
func RunSteps(ctx context.Context, steps []Step) []StepError {
	var failures []StepError
	for _, step := range steps {
		if err := runStep(ctx, step); err != nil {
			slog.Error("finalization step failed", "step", step.Name, "error", err)
			failures = append(failures, StepError{Step: step.Name, Err: err})
			continue
		}
		slog.Info("finalization step completed", "step", step.Name)
	}
	return failures
}

func runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx)
}
