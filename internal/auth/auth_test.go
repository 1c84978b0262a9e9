package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/domain"
)

func TestLoadOrGenerateCreatesTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	a, err := LoadOrGenerate(path, []int{1, 2, 3})
	require.NoError(t, err)

	admin := a.AdminToken()
	assert.Regexp(t, `^ADMIN_[0-9a-f]{64}$`, admin)

	team1, ok := a.TeamToken(1)
	require.True(t, ok)
	assert.Regexp(t, `^TEAM1_[0-9a-f]{64}$`, team1)

	res := a.Validate(admin)
	assert.True(t, res.Valid)
	assert.Equal(t, domain.RoleAdmin, res.Role)

	res = a.Validate(team1)
	assert.True(t, res.Valid)
	assert.Equal(t, domain.RoleTeam, res.Role)
	assert.Equal(t, 1, res.TeamID)

	res = a.Validate("garbage")
	assert.False(t, res.Valid)
	assert.Equal(t, domain.RoleInvalid, res.Role)
}

func TestLoadOrGenerateReloadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	first, err := LoadOrGenerate(path, []int{1, 2})
	require.NoError(t, err)

	second, err := LoadOrGenerate(path, []int{1, 2})
	require.NoError(t, err)

	assert.Equal(t, first.AdminToken(), second.AdminToken())
	t1First, _ := first.TeamToken(1)
	t1Second, _ := second.TeamToken(1)
	assert.Equal(t, t1First, t1Second)
}

func TestLoadOrGenerateRegeneratesOnRosterChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	_, err := LoadOrGenerate(path, []int{1, 2})
	require.NoError(t, err)

	// Roster grew: the persisted file lacks team3's token, so it must
	// regenerate rather than return a partial set.
	a, err := LoadOrGenerate(path, []int{1, 2, 3})
	require.NoError(t, err)
	_, ok := a.TeamToken(3)
	assert.True(t, ok)
}

func TestIsAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	a, err := LoadOrGenerate(path, []int{1})
	require.NoError(t, err)

	assert.True(t, a.IsAdmin(a.AdminToken()))
	team1, _ := a.TeamToken(1)
	assert.False(t, a.IsAdmin(team1))
}
