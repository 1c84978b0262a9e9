// Package config loads the YAML configuration described in spec.md §6:
// game timing, scoring constants, static team roster, database path,
// server bind address, plus the ambient logging and orchestrator-adapter
// settings SPEC_FULL.md adds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adctf/orchestrator/pkg/logger"
)

// GameConfig holds round/patch timing and roster size.
type GameConfig struct {
	NumTeams             int `yaml:"num_teams"`
	RoundDurationSeconds  int `yaml:"round_duration"`
	PatchDurationSeconds  int `yaml:"patch_duration"`
	ServiceCheckInterval  int `yaml:"service_check_interval"`
	FlagLifetimeSeconds   int `yaml:"flag_lifetime"`
}

// RoundDuration is the playing-phase duration.
func (g GameConfig) RoundDuration() time.Duration {
	return time.Duration(g.RoundDurationSeconds) * time.Second
}

// PatchDuration is the patching-phase duration.
func (g GameConfig) PatchDuration() time.Duration {
	return time.Duration(g.PatchDurationSeconds) * time.Second
}

// ProbeInterval is how often the prober sweeps all teams during playing.
func (g GameConfig) ProbeInterval() time.Duration {
	return time.Duration(g.ServiceCheckInterval) * time.Second
}

// ScoringConfig holds the scoring model's tunable constants.
type ScoringConfig struct {
	SLATotalPool           float64 `yaml:"sla_total_pool"`
	BaseDefenseScore       float64 `yaml:"base_defense_score"`
	AttackScorePerFlag     float64 `yaml:"attack_score_per_flag"`
	DefensePenaltyPerSteal float64 `yaml:"defense_penalty_per_steal"`
}

// TeamConfig is one statically-configured team.
type TeamConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the sqlite file backing the Persistent Store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig is the HTTP/WS bind configuration.
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// Addr returns the listen address for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OrchestratorConfig parameterises the Container Orchestrator Adapter
// (spec.md §4.8). It is ambient to spec.md's table, added because the
// adapter's concrete naming/port/IP scheme must come from somewhere.
type OrchestratorConfig struct {
	DockerBinary          string `yaml:"docker_binary"`
	ImagePrefix           string `yaml:"image_prefix"`
	NetworkName           string `yaml:"network_name"`
	NetworkCIDR           string `yaml:"network_cidr"`
	BaseHostPort          int    `yaml:"base_host_port"`
	BaseContainerIPOffset int    `yaml:"base_container_ip_offset"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
}

// CommandTimeout is the per-primitive external-executor timeout.
func (o OrchestratorConfig) CommandTimeout() time.Duration {
	if o.CommandTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(o.CommandTimeoutSeconds) * time.Second
}

// Config is the fully parsed, defaulted configuration tree.
type Config struct {
	Game         GameConfig          `yaml:"game"`
	Scoring      ScoringConfig       `yaml:"scoring"`
	Teams        []TeamConfig        `yaml:"teams"`
	Database     DatabaseConfig      `yaml:"database"`
	Server       ServerConfig        `yaml:"server"`
	Logging      logger.Config       `yaml:"logging"`
	Orchestrator OrchestratorConfig  `yaml:"orchestrator"`
}

// Load reads and parses the YAML file at path, then applies defaults for
// any zero-valued tunable.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Game.RoundDurationSeconds <= 0 {
		c.Game.RoundDurationSeconds = 300
	}
	if c.Game.PatchDurationSeconds <= 0 {
		c.Game.PatchDurationSeconds = 300
	}
	if c.Game.ServiceCheckInterval <= 0 {
		c.Game.ServiceCheckInterval = 30
	}
	if c.Scoring.SLATotalPool <= 0 {
		c.Scoring.SLATotalPool = 512
	}
	if c.Scoring.BaseDefenseScore <= 0 {
		c.Scoring.BaseDefenseScore = 12
	}
	if c.Scoring.AttackScorePerFlag <= 0 {
		c.Scoring.AttackScorePerFlag = 1
	}
	if c.Scoring.DefensePenaltyPerSteal <= 0 {
		c.Scoring.DefensePenaltyPerSteal = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/adctf.db"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Orchestrator.DockerBinary == "" {
		c.Orchestrator.DockerBinary = "docker"
	}
	if c.Orchestrator.ImagePrefix == "" {
		c.Orchestrator.ImagePrefix = "adsystem_team"
	}
	if c.Orchestrator.NetworkName == "" {
		c.Orchestrator.NetworkName = "adctf-net"
	}
	if c.Orchestrator.NetworkCIDR == "" {
		c.Orchestrator.NetworkCIDR = "172.30.0.0/24"
	}
	if c.Orchestrator.BaseHostPort == 0 {
		c.Orchestrator.BaseHostPort = 8100
	}
	if c.Orchestrator.BaseContainerIPOffset == 0 {
		c.Orchestrator.BaseContainerIPOffset = 100
	}
	if c.Game.NumTeams == 0 {
		c.Game.NumTeams = len(c.Teams)
	}
}

func (c *Config) validate() error {
	if len(c.Teams) == 0 {
		return fmt.Errorf("at least one team must be configured")
	}
	seen := make(map[int]struct{}, len(c.Teams))
	for _, t := range c.Teams {
		if t.ID < 1 {
			return fmt.Errorf("team id must be >= 1, got %d", t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate team id %d", t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.Host == "" {
			return fmt.Errorf("team %d: host is required", t.ID)
		}
		if t.Port <= 0 {
			return fmt.Errorf("team %d: port must be positive", t.ID)
		}
	}
	return nil
}
