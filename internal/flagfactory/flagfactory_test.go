package flagfactory

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/domain"
)

var flagPattern = regexp.MustCompile(`^FLAG\{\d+_\d+_[0-9a-f]{32}\}$`)

func TestGenerateFormat(t *testing.T) {
	value, err := Generate(3, 7, domain.VulnLogs)
	require.NoError(t, err)
	assert.Regexp(t, flagPattern, value)
}

func TestGenerateIsUnique(t *testing.T) {
	a, err := Generate(1, 1, domain.VulnMonitor)
	require.NoError(t, err)
	b, err := Generate(1, 1, domain.VulnMonitor)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type fakeFlagStore struct {
	added []domain.Flag
}

func (f *fakeFlagStore) AddFlag(ctx context.Context, flag domain.Flag) error {
	f.added = append(f.added, flag)
	return nil
}

func TestCreateFlagsForRound(t *testing.T) {
	store := &fakeFlagStore{}
	factory := New(store)

	teams := []domain.Team{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Bravo"}}
	result, err := factory.CreateFlagsForRound(context.Background(), 42, 1, teams)
	require.NoError(t, err)

	require.Len(t, result, 2)
	require.Len(t, result[1], 3)
	assert.Contains(t, result[1], domain.VulnMonitor)
	assert.Contains(t, result[1], domain.VulnLogs)
	assert.Contains(t, result[1], domain.VulnDownload)

	assert.Len(t, store.added, 6) // 2 teams * 3 vuln types
	for _, f := range store.added {
		assert.Equal(t, int64(42), f.RoundID)
	}
}
