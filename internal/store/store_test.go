package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adctf.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetTeams(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 1, Name: "Alpha", Host: "10.0.0.1", Port: 8000}))
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 2, Name: "Bravo", Host: "10.0.0.2", Port: 8000}))

	teams, err := s.GetTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Alpha", teams[0].Name)

	// Re-registering the same id upserts in place rather than duplicating.
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 1, Name: "Alpha2", Host: "10.0.0.1", Port: 9000}))
	teams, err = s.GetTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Alpha2", teams[0].Name)
	assert.Equal(t, 9000, teams[0].Port)
}

func TestRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetCurrentRound(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	cur, err := s.GetCurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.RoundNumber)
	assert.Equal(t, domain.RoundActive, cur.Status)
	assert.Nil(t, cur.EndTime)

	require.NoError(t, s.CloseRound(ctx, id))
	_, err = s.GetCurrentRound(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	closed, err := s.GetRoundByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundClosed, closed.Status)
	assert.NotNil(t, closed.EndTime)

	// Closing again is a no-op, not an error.
	require.NoError(t, s.CloseRound(ctx, id))
}

func TestFlagsAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 1, Name: "Alpha", Host: "h", Port: 1}))
	roundID, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	f := domain.Flag{TeamID: 1, RoundID: roundID, Value: "FLAG{1_1_abc}", VulnType: domain.VulnMonitor}
	require.NoError(t, s.AddFlag(ctx, f))

	got, err := s.GetFlagByValue(ctx, "FLAG{1_1_abc}")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TeamID)
	assert.Equal(t, domain.VulnMonitor, got.VulnType)

	_, err = s.GetFlagByValue(ctx, "FLAG{nope}")
	assert.ErrorIs(t, err, ErrNotFound)

	flags, err := s.TeamFlags(ctx, 1, roundID)
	require.NoError(t, err)
	assert.Equal(t, "FLAG{1_1_abc}", flags[domain.VulnMonitor])
}

func TestSubmissionAntiReplay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 1, Name: "Alpha", Host: "h", Port: 1}))
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 2, Name: "Bravo", Host: "h", Port: 1}))
	roundID, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	sub := domain.FlagSubmission{SubmitterTeamID: 1, TargetTeamID: 2, RoundID: roundID, FlagValue: "FLAG{2_1_xyz}"}
	require.NoError(t, s.RecordSubmission(ctx, sub))

	err = s.RecordSubmission(ctx, sub)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	counts, err := s.StealCounts(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[2])

	atk, err := s.AttackCounts(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, 1, atk[1])

	hist, err := s.SubmissionHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "FLAG{2_1_xyz}", hist[0].FlagValue)
}

func TestProbesAndScoreboard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 1, Name: "Alpha", Host: "h", Port: 1}))
	require.NoError(t, s.AddTeam(ctx, domain.Team{ID: 2, Name: "Bravo", Host: "h", Port: 1}))
	roundID, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.RecordProbe(ctx, domain.ServiceProbe{TeamID: 1, RoundID: roundID, IsUp: true, ResponseTime: 0.1}))
	require.NoError(t, s.RecordProbe(ctx, domain.ServiceProbe{TeamID: 1, RoundID: roundID, IsUp: false, ErrorMessage: "Failed (1/3): /files"}))
	require.NoError(t, s.RecordProbe(ctx, domain.ServiceProbe{TeamID: 2, RoundID: roundID, IsUp: true, ResponseTime: 0.2}))

	latest, err := s.LatestProbePerTeam(ctx, roundID)
	require.NoError(t, err)
	assert.False(t, latest[1].IsUp, "second probe for team 1 should win as the latest")
	assert.True(t, latest[2].IsUp)

	require.NoError(t, s.SaveScores(ctx, domain.Score{TeamID: 1, RoundID: roundID, SLA: 0, Defense: 12, Attack: 0, Total: 12}))
	require.NoError(t, s.SaveScores(ctx, domain.Score{TeamID: 2, RoundID: roundID, SLA: 512, Defense: 12, Attack: 1, Total: 525}))
	// Re-saving the same (team, round) upserts instead of duplicating.
	require.NoError(t, s.SaveScores(ctx, domain.Score{TeamID: 1, RoundID: roundID, SLA: 0, Defense: 11, Attack: 0, Total: 11}))

	scores, err := s.RoundScores(ctx, roundID)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	board, err := s.Scoreboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 2, board[0].TeamID, "higher total should sort first")
	assert.Equal(t, 525.0, board[0].Total)
}
