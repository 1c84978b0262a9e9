// Package scheduler is the Round Scheduler of spec.md §4.9, the heart of
// the system: a non-preemptive two-phase (playing/patching) state
// machine running in one dedicated goroutine, driving the Flag Factory,
// Service Prober, Scoring Engine, Container Orchestrator Adapter, and
// Event Broadcaster in strict order every round.
//
// Grounded on the teacher's automation.Scheduler ticker-driven
// background Service pattern (single-slot running guard, cancellable
// context, sync.WaitGroup-bounded Stop), generalized from a fixed-tick
// job poller into the spec's playing/patching phase loop with
// variable-length sleeps.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/adctf/orchestrator/internal/apierr"
	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/metrics"
	"github.com/adctf/orchestrator/internal/system"
	"github.com/adctf/orchestrator/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Store is the subset of the Persistent Store the scheduler drives.
type Store interface {
	GetTeams(ctx context.Context) ([]domain.Team, error)
	CreateRound(ctx context.Context, roundNumber int) (int64, error)
	CloseRound(ctx context.Context, roundID int64) error
	RecordProbe(ctx context.Context, p domain.ServiceProbe) error
}

// FlagFactory is the subset of the Flag Factory the scheduler drives.
type FlagFactory interface {
	CreateFlagsForRound(ctx context.Context, roundID int64, roundNumber int, teams []domain.Team) (map[int]map[domain.VulnType]string, error)
}

// Prober is the subset of the Service Prober the scheduler drives.
type Prober interface {
	CheckAll(ctx context.Context, teams []domain.Team) []domain.ServiceProbe
}

// ScoringEngine is the subset of the Scoring Engine the scheduler drives.
type ScoringEngine interface {
	CalculateRoundScores(ctx context.Context, roundID int64) error
}

// Orchestrator is the subset of the Container Orchestrator Adapter the
// scheduler drives.
type Orchestrator interface {
	Destroy(ctx context.Context, teamIDs []int)
	EnsureNetwork(ctx context.Context) error
	Create(ctx context.Context, team domain.Team, secretKey, mainServer string) error
	CopyInto(ctx context.Context, teamID int, localPath, remotePath string, reload bool) error
}

// PatchSource is the subset of the Patch Store the scheduler reads from.
type PatchSource interface {
	Fetch(teamID int) ([]byte, error)
}

// Broadcaster is the subset of the Event Broadcaster the scheduler uses.
type Broadcaster interface {
	Publish(ev broadcast.Event)
}

const (
	containerBootWait = 15 * time.Second
	patchApplyWait     = 5 * time.Second
	remainingTick      = 1 * time.Second
)

// Scheduler drives the playing/patching round loop. It is the sole
// writer of GameState.
type Scheduler struct {
	store        Store
	factory      FlagFactory
	prober       Prober
	scoring      ScoringEngine
	orchestrator Orchestrator
	patches      PatchSource
	broadcaster  Broadcaster
	log          *logger.Logger

	game       config.GameConfig
	secretKey  string
	mainServer string
	httpClient *http.Client

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	state   domain.GameState
}

// New builds a Scheduler wired to every component it drives.
func New(
	store Store,
	factory FlagFactory,
	prober Prober,
	scoring ScoringEngine,
	orch Orchestrator,
	patches PatchSource,
	broadcaster Broadcaster,
	game config.GameConfig,
	secretKey, mainServer string,
	log *logger.Logger,
) *Scheduler {
	if log == nil {
		log = logger.NewDefault("round-scheduler")
	}
	return &Scheduler{
		store:        store,
		factory:      factory,
		prober:       prober,
		scoring:      scoring,
		orchestrator: orch,
		patches:      patches,
		broadcaster:  broadcaster,
		game:         game,
		secretKey:    secretKey,
		mainServer:   mainServer,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		log:          log,
		state:        domain.GameState{Phase: domain.PhaseIdle},
	}
}

// Name identifies this service to the system.Manager.
func (s *Scheduler) Name() string { return "round-scheduler" }

// Start is a no-op lifecycle hook: the round loop only runs once an admin
// calls StartGame. Process startup never auto-starts a game.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("round scheduler ready")
	return nil
}

// Stop ensures any running game loop winds down before the process exits.
func (s *Scheduler) Stop(ctx context.Context) error {
	_ = s.StopGame()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Status returns a snapshot of the process-local GameState for display.
func (s *Scheduler) Status() domain.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartGame begins the round loop. Exactly one loop may run at a time:
// a second call while one is active is rejected (spec.md §5's "two
// scheduler workers must not coexist").
func (s *Scheduler) StartGame(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return apierr.Conflictf("game already started")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.state = domain.GameState{Started: true, Phase: domain.PhaseIdle}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(context.Background())
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.broadcaster.Publish(broadcast.Event{Type: broadcast.EventGameStarted})
	s.log.Info("game started")
	return nil
}

// StopGame signals the round loop to wind down after finishing its
// current cleanup step. It does not block on the loop's exit — the
// scheduler, not this caller, owns GameState mutation.
func (s *Scheduler) StopGame() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh := s.stopCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	s.broadcaster.Publish(broadcast.Event{Type: broadcast.EventGameStopped})
	s.log.Info("game stop requested")
	return nil
}

func (s *Scheduler) isStopping() bool {
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if stopCh == nil {
		return true
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// sleepInterruptible waits for d, or returns early if the game is
// stopped or the process is shutting down.
func (s *Scheduler) sleepInterruptible(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-stopCh:
	}
}

func (s *Scheduler) setState(mutate func(*domain.GameState)) {
	s.mu.Lock()
	mutate(&s.state)
	s.mu.Unlock()
}

// runLoop repeats playing -> patching forever until stopped. Any panic
// or error from one iteration is logged and the loop backs off 5s before
// continuing, so the game never dies from a single bad round (spec.md
// line 136: "On any exception inside the loop, log with stack trace,
// sleep 5 s, and continue").
func (s *Scheduler) runLoop(ctx context.Context) {
	for !s.isStopping() {
		if err := s.safeguard(func() error { return s.runPlayingPhase(ctx) }); err != nil {
			s.log.WithError(err).Error("playing phase failed, backing off")
			s.sleepInterruptible(ctx, 5*time.Second)
			continue
		}
		if s.isStopping() {
			break
		}
		if err := s.safeguard(func() error { return s.runPatchingPhase(ctx) }); err != nil {
			s.log.WithError(err).Error("patching phase failed, backing off")
			s.sleepInterruptible(ctx, 5*time.Second)
			continue
		}
	}

	s.setState(func(gs *domain.GameState) {
		gs.Started = false
		gs.Phase = domain.PhaseIdle
		gs.PhaseDeadline = nil
		gs.RemainingSecs = 0
	})
	s.log.Info("round loop exited")
}

// safeguard recovers a panicking phase into an error so runLoop applies
// the same sleep-5s-and-continue backoff to panics and ordinary errors
// alike, instead of the two paths being handled differently.
func (s *Scheduler) safeguard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// runPlayingPhase implements spec.md §4.9's PLAYING phase steps 1-7.
func (s *Scheduler) runPlayingPhase(ctx context.Context) error {
	s.mu.Lock()
	roundNumber := s.state.CurrentRound + 1
	s.mu.Unlock()

	roundID, err := s.store.CreateRound(ctx, roundNumber)
	if err != nil {
		return fmt.Errorf("create round: %w", err)
	}

	deadline := time.Now().Add(s.game.RoundDuration())
	s.setState(func(gs *domain.GameState) {
		gs.CurrentRound = roundNumber
		gs.RoundID = roundID
		gs.Phase = domain.PhasePlaying
		gs.PhaseDeadline = &deadline
	})

	teams, err := s.store.GetTeams(ctx)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}

	if _, err := s.factory.CreateFlagsForRound(ctx, roundID, roundNumber, teams); err != nil {
		return fmt.Errorf("mint flags: %w", err)
	}

	s.broadcaster.Publish(broadcast.Event{
		Type: broadcast.EventRoundStarted,
		Data: map[string]any{
			"round_number": roundNumber,
			"phase":        domain.PhasePlaying,
			"duration":     int(s.game.RoundDuration().Seconds()),
		},
	})

	for time.Now().Before(deadline) && !s.isStopping() {
		remaining := int(time.Until(deadline).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		s.setState(func(gs *domain.GameState) { gs.RemainingSecs = remaining })

		probes := s.prober.CheckAll(ctx, teams)
		up := 0
		for _, p := range probes {
			p.RoundID = roundID
			if p.IsUp {
				up++
			}
			if err := s.store.RecordProbe(ctx, p); err != nil {
				s.log.WithError(err).Warn("record probe failed")
			}
		}
		metrics.ServicesUp.Set(float64(up))
		s.broadcaster.Publish(broadcast.Event{Type: broadcast.EventServiceStatusUpdated, Data: probes})
		s.sleepInterruptible(ctx, s.game.ProbeInterval())
	}

	if err := s.scoring.CalculateRoundScores(ctx, roundID); err != nil {
		s.log.WithError(err).Error("score calculation failed")
	}
	if err := s.store.CloseRound(ctx, roundID); err != nil {
		s.log.WithError(err).Error("close round failed")
	}
	metrics.RoundsCompleted.Inc()
	s.broadcaster.Publish(broadcast.Event{Type: broadcast.EventScoreboardUpdated})
	return nil
}

// runPatchingPhase implements spec.md §4.9's PATCHING phase steps 1-7.
func (s *Scheduler) runPatchingPhase(ctx context.Context) error {
	deadline := time.Now().Add(s.game.PatchDuration())
	s.setState(func(gs *domain.GameState) {
		gs.Phase = domain.PhasePatching
		gs.PhaseDeadline = &deadline
	})
	s.broadcaster.Publish(broadcast.Event{
		Type: broadcast.EventPhaseChanged,
		Data: map[string]any{"phase": domain.PhasePatching, "duration": int(s.game.PatchDuration().Seconds())},
	})

	teams, err := s.store.GetTeams(ctx)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}

	ids := make([]int, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	s.orchestrator.Destroy(ctx, ids)
	if err := s.orchestrator.EnsureNetwork(ctx); err != nil {
		s.log.WithError(err).Warn("ensure network failed")
	}
	for _, team := range teams {
		if err := s.orchestrator.Create(ctx, team, s.secretKey, s.mainServer); err != nil {
			s.log.WithError(err).WithField("team_id", team.ID).Warn("recreate container failed")
		}
	}

	s.sleepInterruptible(ctx, containerBootWait)
	if s.isStopping() {
		return nil
	}

	for _, team := range teams {
		patch, err := s.patches.Fetch(team.ID)
		if err != nil {
			continue // no patch uploaded for this team, nothing to apply
		}
		if err := s.applyPatch(ctx, team.ID, patch); err != nil {
			s.log.WithError(err).WithField("team_id", team.ID).Warn("apply patch failed")
		}
	}

	s.sleepInterruptible(ctx, patchApplyWait)
	if s.isStopping() {
		return nil
	}

	s.warmup(ctx, teams)

	for time.Now().Before(deadline) && !s.isStopping() {
		remaining := int(time.Until(deadline).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		s.setState(func(gs *domain.GameState) { gs.RemainingSecs = remaining })
		s.sleepInterruptible(ctx, remainingTick)
	}
	return nil
}

func (s *Scheduler) applyPatch(ctx context.Context, teamID int, patch []byte) error {
	tmp, err := os.CreateTemp("", fmt.Sprintf("patch-team%d-*.py", teamID))
	if err != nil {
		return fmt.Errorf("stage patch: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(patch); err != nil {
		tmp.Close()
		return fmt.Errorf("stage patch: %w", err)
	}
	tmp.Close()

	return s.orchestrator.CopyInto(ctx, teamID, tmp.Name(), "/app/app.py", true)
}

func (s *Scheduler) warmup(ctx context.Context, teams []domain.Team) {
	for _, team := range teams {
		url := fmt.Sprintf("http://%s:%d/health", team.Host, team.Port)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.WithField("team_id", team.ID).WithError(err).Warn("warmup request failed")
			continue
		}
		resp.Body.Close()
	}
}
