package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
)

// fakeDocker writes a shell script standing in for the docker binary so
// the adapter's exec.CommandContext plumbing can be exercised without a
// real container runtime.
func fakeDocker(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake docker script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "docker")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testCfg(dockerPath string) config.OrchestratorConfig {
	return config.OrchestratorConfig{
		DockerBinary:          dockerPath,
		ImagePrefix:           "adsystem_team",
		NetworkName:           "adctf-net",
		NetworkCIDR:           "172.30.0.0/24",
		BaseHostPort:          8100,
		BaseContainerIPOffset: 100,
		CommandTimeoutSeconds: 5,
	}
}

func TestContainerNamingScheme(t *testing.T) {
	cfg := testCfg("docker")
	assert.Equal(t, "adsystem_team3", containerName(cfg, 3))
	assert.Equal(t, "172.30.0.103", containerIP(cfg, 3))
	assert.Equal(t, 8103, hostPort(cfg, 3))
}

func TestDestroyIgnoresNotFound(t *testing.T) {
	docker := fakeDocker(t, `echo "Error: No such container: adsystem_team1" >&2; exit 1`)
	a := New(testCfg(docker), nil)
	a.Destroy(context.Background(), []int{1})
	// No panic and no error channel: idempotence is "doesn't blow up".
}

func TestEnsureNetworkCreatesWhenAbsent(t *testing.T) {
	calls := filepath.Join(t.TempDir(), "calls.log")
	docker := fakeDocker(t, `
if [ "$1" = "network" ] && [ "$2" = "inspect" ]; then
  echo "no such network" >&2
  exit 1
fi
echo "$@" >> `+calls+`
exit 0
`)
	a := New(testCfg(docker), nil)
	require.NoError(t, a.EnsureNetwork(context.Background()))

	out, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Contains(t, string(out), "network create")
}

func TestCreateInvokesDockerRun(t *testing.T) {
	calls := filepath.Join(t.TempDir(), "calls.log")
	docker := fakeDocker(t, `echo "$@" >> `+calls+`; exit 0`)
	a := New(testCfg(docker), nil)

	err := a.Create(context.Background(), domain.Team{ID: 2, Host: "x", Port: 1}, "s3cr3t", "main:8080")
	require.NoError(t, err)

	out, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Contains(t, string(out), "adsystem_team2")
	assert.Contains(t, string(out), "172.30.0.102")
	assert.Contains(t, string(out), "8102:8000")
}

func TestCopyIntoFailurePropagates(t *testing.T) {
	docker := fakeDocker(t, `echo "no such container" >&2; exit 1`)
	a := New(testCfg(docker), nil)
	err := a.CopyInto(context.Background(), 1, "/tmp/app.py", "/app/app.py", false)
	assert.Error(t, err)
}
