// Package orchestrator is the Container Orchestrator Adapter of spec.md
// §4.8: an opaque external-executor wrapper around the docker CLI,
// exposing destroy/ensure-network/create/copy-into primitives, each
// bounded by its own timeout.
//
// Grounded on the exec.CommandContext + CombinedOutput() call pattern
// from the teacher's test/contract neo-express wrapper (per-call
// timeout via context, command failures carry combined stdout+stderr).
package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/metrics"
	"github.com/adctf/orchestrator/pkg/logger"
)

// Adapter drives the external container runtime via its CLI.
type Adapter struct {
	cfg     config.OrchestratorConfig
	log     *logger.Logger
	timeout time.Duration
}

// New builds an Adapter. The secretKey and mainServer environment values
// every team container receives are passed per call to Create.
func New(cfg config.OrchestratorConfig, log *logger.Logger) *Adapter {
	return &Adapter{cfg: cfg, log: log, timeout: cfg.CommandTimeout()}
}

func containerName(cfg config.OrchestratorConfig, teamID int) string {
	return fmt.Sprintf("%s%d", cfg.ImagePrefix, teamID)
}

func containerIP(cfg config.OrchestratorConfig, teamID int) string {
	prefix := cfg.NetworkCIDR
	if idx := strings.IndexByte(prefix, '/'); idx >= 0 {
		prefix = prefix[:idx]
	}
	octets := strings.Split(prefix, ".")
	if len(octets) != 4 {
		octets = []string{"172", "30", "0", "0"}
	}
	return fmt.Sprintf("%s.%s.%s.%d", octets[0], octets[1], octets[2], cfg.BaseContainerIPOffset+teamID)
}

func hostPort(cfg config.OrchestratorConfig, teamID int) int {
	return cfg.BaseHostPort + teamID
}

func (a *Adapter) run(parent context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, a.cfg.DockerBinary, args...).CombinedOutput()
	return string(out), err
}

// Destroy forcibly removes every named team's container. Already-absent
// containers are not an error (idempotent), matching `docker rm -f`'s own
// "No such container" tolerance in spec.md §4.8.
func (a *Adapter) Destroy(ctx context.Context, teamIDs []int) {
	for _, id := range teamIDs {
		name := containerName(a.cfg, id)
		out, err := a.run(ctx, "rm", "-f", name)
		if err != nil && !strings.Contains(out, "No such container") {
			metrics.OrchestratorCalls.WithLabelValues("destroy", "error").Inc()
			a.logf(id, "destroy failed: %s: %v", strings.TrimSpace(out), err)
			continue
		}
		metrics.OrchestratorCalls.WithLabelValues("destroy", "ok").Inc()
	}
}

// EnsureNetwork creates the shared team network if it doesn't exist yet.
func (a *Adapter) EnsureNetwork(ctx context.Context) error {
	out, err := a.run(ctx, "network", "inspect", a.cfg.NetworkName)
	if err == nil {
		metrics.OrchestratorCalls.WithLabelValues("ensure_network", "ok").Inc()
		return nil
	}
	out, err = a.run(ctx, "network", "create", "--subnet", a.cfg.NetworkCIDR, a.cfg.NetworkName)
	if err != nil && !strings.Contains(out, "already exists") {
		metrics.OrchestratorCalls.WithLabelValues("ensure_network", "error").Inc()
		return fmt.Errorf("ensure network %s: %s: %w", a.cfg.NetworkName, strings.TrimSpace(out), err)
	}
	metrics.OrchestratorCalls.WithLabelValues("ensure_network", "ok").Inc()
	return nil
}

// Create starts one team's container from its base image, wired to the
// shared network at its fixed IP and publishing its fixed host port, per
// spec.md §4.8's naming/port/IP scheme.
func (a *Adapter) Create(ctx context.Context, team domain.Team, secretKey, mainServer string) error {
	name := containerName(a.cfg, team.ID)
	image := name // image and container share the "adsystem_team{i}" name
	ip := containerIP(a.cfg, team.ID)
	port := hostPort(a.cfg, team.ID)

	args := []string{
		"run", "-d",
		"--name", name,
		"--network", a.cfg.NetworkName,
		"--ip", ip,
		"-p", fmt.Sprintf("%d:8000", port),
		"-e", fmt.Sprintf("TEAM_ID=%d", team.ID),
		"-e", fmt.Sprintf("MAIN_SERVER=%s", mainServer),
		"-e", fmt.Sprintf("PORT=%d", 8000),
		"-e", fmt.Sprintf("SECRET_KEY=%s", secretKey),
		"-e", "APACHE_LOG_DIR=/app/logs",
		"-v", fmt.Sprintf("team%d-logs:/app/logs", team.ID),
		"-v", fmt.Sprintf("team%d-files:/app/files", team.ID),
		image,
	}

	out, err := a.run(ctx, args...)
	if err != nil {
		metrics.OrchestratorCalls.WithLabelValues("create", "error").Inc()
		return fmt.Errorf("create container %s: %s: %w", name, strings.TrimSpace(out), err)
	}
	metrics.OrchestratorCalls.WithLabelValues("create", "ok").Inc()
	return nil
}

// CopyInto pushes a local file into a running container at remotePath,
// then optionally signals the in-container server to reload.
func (a *Adapter) CopyInto(ctx context.Context, teamID int, localPath, remotePath string, reload bool) error {
	name := containerName(a.cfg, teamID)
	out, err := a.run(ctx, "cp", localPath, fmt.Sprintf("%s:%s", name, remotePath))
	if err != nil {
		metrics.OrchestratorCalls.WithLabelValues("copy_into", "error").Inc()
		return fmt.Errorf("copy into %s: %s: %w", name, strings.TrimSpace(out), err)
	}
	metrics.OrchestratorCalls.WithLabelValues("copy_into", "ok").Inc()
	if reload {
		// Best-effort graceful reload (SIGHUP to the container's PID 1); a
		// failed signal is logged, not fatal — the copied file stays in
		// the container either way.
		out, err := a.run(ctx, "exec", name, "kill", "-HUP", "1")
		if err != nil {
			a.logf(teamID, "graceful reload signal failed: %s: %v", strings.TrimSpace(out), err)
		}
	}
	return nil
}

func (a *Adapter) logf(teamID int, format string, args ...any) {
	if a.log == nil {
		return
	}
	a.log.WithField("team_id", teamID).Warnf(format, args...)
}
