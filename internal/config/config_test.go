package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
game:
  num_teams: 2
  round_duration: 60
  patch_duration: 30
  service_check_interval: 10
scoring:
  sla_total_pool: 512
  base_defense_score: 12
  attack_score_per_flag: 1
  defense_penalty_per_steal: 1
teams:
  - id: 1
    name: "Team One"
    host: "127.0.0.1"
    port: 9001
  - id: 2
    name: "Team Two"
    host: "127.0.0.1"
    port: 9002
database:
  path: "data/test.db"
server:
  host: "0.0.0.0"
  port: 8080
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Game.NumTeams)
	assert.Equal(t, 60, cfg.Game.RoundDurationSeconds)
	assert.Equal(t, "docker", cfg.Orchestrator.DockerBinary)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Len(t, cfg.Teams, 2)
}

const dupTeamYAML = `
game:
  num_teams: 2
  round_duration: 60
  patch_duration: 30
  service_check_interval: 10
teams:
  - id: 1
    name: "Dup"
    host: "x"
    port: 1
  - id: 1
    name: "Dup2"
    host: "y"
    port: 2
`

func TestLoadRejectsDuplicateTeamIDs(t *testing.T) {
	path := writeTempConfig(t, dupTeamYAML)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
