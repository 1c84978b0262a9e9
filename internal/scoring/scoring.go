// Package scoring is the Scoring Engine of spec.md §4.5: computes each
// team's SLA, defense, and attack score for a closed round and persists
// them. Grounded line-for-line on original_source/backend/scoring.py's
// ScoringEngine (pool-split SLA, base-minus-steals defense floored at
// zero, per-flag attack score, round() to 2 decimals throughout).
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/pkg/logger"
)

// Store is the subset of the Persistent Store the engine reads from and
// writes to.
type Store interface {
	GetTeams(ctx context.Context) ([]domain.Team, error)
	LatestProbePerTeam(ctx context.Context, roundID int64) (map[int]domain.ServiceProbe, error)
	StealCounts(ctx context.Context, roundID int64) (map[int]int, error)
	AttackCounts(ctx context.Context, roundID int64) (map[int]int, error)
	SaveScores(ctx context.Context, sc domain.Score) error
}

// Engine computes round scores using the tunables in config.ScoringConfig.
type Engine struct {
	store Store
	cfg   config.ScoringConfig
	log   *logger.Logger
}

// New builds an Engine backed by store and cfg.
func New(store Store, cfg config.ScoringConfig, log *logger.Logger) *Engine {
	return &Engine{store: store, cfg: cfg, log: log}
}

// round2 matches Python's round(x, 2) banker's-unaware behaviour closely
// enough for score magnitudes in this domain (values are always positive
// and never land exactly on a .xx5 boundary from these formulas).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SLAScore returns pool/online_count for an online team, else 0.
func (e *Engine) SLAScore(teamID int, isUp map[int]bool) float64 {
	if !isUp[teamID] {
		return 0
	}
	online := 0
	for _, up := range isUp {
		if up {
			online++
		}
	}
	if online == 0 {
		return 0
	}
	return round2(e.cfg.SLATotalPool / float64(online))
}

// DefenseScore returns base - steals*penalty, floored at 0.
func (e *Engine) DefenseScore(teamID int, steals map[int]int) float64 {
	score := e.cfg.BaseDefenseScore - float64(steals[teamID])*e.cfg.DefensePenaltyPerSteal
	if score < 0 {
		score = 0
	}
	return round2(score)
}

// AttackScore returns attacks*per_flag.
func (e *Engine) AttackScore(teamID int, attacks map[int]int) float64 {
	return round2(float64(attacks[teamID]) * e.cfg.AttackScorePerFlag)
}

// CalculateRoundScores computes and persists every team's score for
// roundID, logging the per-team breakdown the way the original scorer
// logged each calculation step.
func (e *Engine) CalculateRoundScores(ctx context.Context, roundID int64) error {
	teams, err := e.store.GetTeams(ctx)
	if err != nil {
		return fmt.Errorf("calculate scores: %w", err)
	}
	probes, err := e.store.LatestProbePerTeam(ctx, roundID)
	if err != nil {
		return fmt.Errorf("calculate scores: %w", err)
	}
	isUp := make(map[int]bool, len(probes))
	for teamID, p := range probes {
		isUp[teamID] = p.IsUp
	}
	steals, err := e.store.StealCounts(ctx, roundID)
	if err != nil {
		return fmt.Errorf("calculate scores: %w", err)
	}
	attacks, err := e.store.AttackCounts(ctx, roundID)
	if err != nil {
		return fmt.Errorf("calculate scores: %w", err)
	}

	for _, team := range teams {
		sla := e.SLAScore(team.ID, isUp)
		defense := e.DefenseScore(team.ID, steals)
		attack := e.AttackScore(team.ID, attacks)
		total := round2(sla + defense + attack)

		sc := domain.Score{TeamID: team.ID, RoundID: roundID, SLA: sla, Defense: defense, Attack: attack, Total: total}
		if err := e.store.SaveScores(ctx, sc); err != nil {
			return fmt.Errorf("save score for team %d: %w", team.ID, err)
		}

		if e.log != nil {
			e.log.WithField("team_id", team.ID).
				WithField("sla", sla).
				WithField("defense", defense).
				WithField("attack", attack).
				WithField("total", total).
				Info("round score calculated")
		}
	}
	return nil
}
