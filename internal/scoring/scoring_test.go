package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
)

type fakeScoreStore struct {
	teams   []domain.Team
	probes  map[int]domain.ServiceProbe
	steals  map[int]int
	attacks map[int]int
	saved   []domain.Score
}

func (f *fakeScoreStore) GetTeams(ctx context.Context) ([]domain.Team, error) { return f.teams, nil }
func (f *fakeScoreStore) LatestProbePerTeam(ctx context.Context, roundID int64) (map[int]domain.ServiceProbe, error) {
	return f.probes, nil
}
func (f *fakeScoreStore) StealCounts(ctx context.Context, roundID int64) (map[int]int, error) {
	return f.steals, nil
}
func (f *fakeScoreStore) AttackCounts(ctx context.Context, roundID int64) (map[int]int, error) {
	return f.attacks, nil
}
func (f *fakeScoreStore) SaveScores(ctx context.Context, sc domain.Score) error {
	f.saved = append(f.saved, sc)
	return nil
}

func defaultCfg() config.ScoringConfig {
	return config.ScoringConfig{SLATotalPool: 512, BaseDefenseScore: 12, AttackScorePerFlag: 1, DefensePenaltyPerSteal: 1}
}

func TestSLAScoreSplitsPoolAmongOnline(t *testing.T) {
	e := New(nil, defaultCfg(), nil)
	up := map[int]bool{1: true, 2: true, 3: false}
	assert.Equal(t, 256.0, e.SLAScore(1, up))
	assert.Equal(t, 0.0, e.SLAScore(3, up))
}

func TestDefenseScoreFlooredAtZero(t *testing.T) {
	e := New(nil, defaultCfg(), nil)
	steals := map[int]int{1: 0, 2: 20}
	assert.Equal(t, 12.0, e.DefenseScore(1, steals))
	assert.Equal(t, 0.0, e.DefenseScore(2, steals))
}

func TestAttackScore(t *testing.T) {
	e := New(nil, defaultCfg(), nil)
	attacks := map[int]int{1: 5}
	assert.Equal(t, 5.0, e.AttackScore(1, attacks))
	assert.Equal(t, 0.0, e.AttackScore(2, attacks))
}

func TestCalculateRoundScoresEndToEnd(t *testing.T) {
	store := &fakeScoreStore{
		teams: []domain.Team{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Bravo"}},
		probes: map[int]domain.ServiceProbe{
			1: {TeamID: 1, IsUp: true},
			2: {TeamID: 2, IsUp: false},
		},
		steals:  map[int]int{1: 1},
		attacks: map[int]int{2: 3},
	}
	e := New(store, defaultCfg(), nil)
	require.NoError(t, e.CalculateRoundScores(context.Background(), 7))

	require.Len(t, store.saved, 2)
	byTeam := map[int]domain.Score{}
	for _, s := range store.saved {
		byTeam[s.TeamID] = s
	}
	assert.Equal(t, 512.0, byTeam[1].SLA, "sole online team gets the full pool")
	assert.Equal(t, 11.0, byTeam[1].Defense)
	assert.Equal(t, 0.0, byTeam[1].Attack)
	assert.Equal(t, 523.0, byTeam[1].Total)

	assert.Equal(t, 0.0, byTeam[2].SLA)
	assert.Equal(t, 12.0, byTeam[2].Defense)
	assert.Equal(t, 3.0, byTeam[2].Attack)
}
