// Package submission is the Submission Engine of spec.md §4.6: validates
// and records one flag-capture attempt, in the exact four-step order the
// spec lays out, and notifies the Event Broadcaster on success.
package submission

import (
	"context"
	"errors"

	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/metrics"
	"github.com/adctf/orchestrator/internal/store"
)

// Store is the subset of the Persistent Store the engine needs.
type Store interface {
	GetFlagByValue(ctx context.Context, value string) (*domain.Flag, error)
	RecordSubmission(ctx context.Context, sub domain.FlagSubmission) error
}

// Broadcaster is the subset of the Event Broadcaster the engine needs.
type Broadcaster interface {
	Publish(ev broadcast.Event)
}

// Result is the outcome returned to the HTTP handler for
// POST /api/flag/submit.
type Result struct {
	Success      bool
	Message      string
	TargetTeamID int
}

// Engine wires the Store and Broadcaster together for flag submission.
type Engine struct {
	store       Store
	broadcaster Broadcaster
}

// New builds an Engine.
func New(store Store, broadcaster Broadcaster) *Engine {
	return &Engine{store: store, broadcaster: broadcaster}
}

// Submit runs the four-step algorithm of spec.md §4.6. currentRoundID and
// currentRoundNumber identify the round the submission is credited to —
// which, per §9's open question, may differ from the round the flag was
// originally minted in.
func (e *Engine) Submit(ctx context.Context, submitterTeamID int, flagValue string, currentRoundID int64, currentRoundNumber int) (Result, error) {
	flag, err := e.store.GetFlagByValue(ctx, flagValue)
	if errors.Is(err, store.ErrNotFound) {
		metrics.FlagSubmissions.WithLabelValues("invalid").Inc()
		return Result{Success: false, Message: "Invalid flag"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if flag.TeamID == submitterTeamID {
		metrics.FlagSubmissions.WithLabelValues("own_flag").Inc()
		return Result{Success: false, Message: "Cannot submit your own flag"}, nil
	}

	sub := domain.FlagSubmission{
		SubmitterTeamID: submitterTeamID,
		TargetTeamID:    flag.TeamID,
		RoundID:         currentRoundID,
		FlagValue:       flagValue,
	}
	err = e.store.RecordSubmission(ctx, sub)
	if errors.Is(err, store.ErrDuplicateSubmission) {
		metrics.FlagSubmissions.WithLabelValues("duplicate").Inc()
		return Result{Success: false, Message: "This flag has already been submitted"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	metrics.FlagSubmissions.WithLabelValues("accepted").Inc()

	if e.broadcaster != nil {
		e.broadcaster.Publish(broadcast.Event{
			Type: broadcast.EventFlagCaptured,
			Data: map[string]any{
				"attacker_team_id": submitterTeamID,
				"victim_team_id":   flag.TeamID,
				"round_number":     currentRoundNumber,
			},
		})
	}

	return Result{Success: true, Message: "Flag accepted", TargetTeamID: flag.TeamID}, nil
}
