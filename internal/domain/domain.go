// Package domain holds the shared data model described in spec.md §3:
// teams, rounds, flags, submissions, probes, scores, and the in-process
// game/auth state that the rest of the orchestrator is built around.
package domain

import "time"

// VulnType is one of the three vulnerability classes every team's service
// exposes, each minted a distinct flag per round.
type VulnType string

const (
	VulnMonitor  VulnType = "monitor"
	VulnLogs     VulnType = "logs"
	VulnDownload VulnType = "download"
)

// VulnTypes lists the fixed, ordered set of vulnerability types flags are
// minted for every round.
var VulnTypes = []VulnType{VulnMonitor, VulnLogs, VulnDownload}

// RoundStatus is the lifecycle state of a Round row.
type RoundStatus string

const (
	RoundActive RoundStatus = "active"
	RoundClosed RoundStatus = "closed"
)

// Phase is the scheduler's current phase, mirrored into GameState for
// status queries.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhasePatching Phase = "patching"
)

// Role identifies the kind of principal a bearer token resolves to.
type Role string

const (
	RoleInvalid Role = "invalid"
	RoleAdmin   Role = "admin"
	RoleTeam    Role = "team"
)

// Team is static configuration, loaded at boot and never mutated except by
// a same-ID upsert.
type Team struct {
	ID   int
	Name string
	Host string
	Port int
}

// Round is one playing-phase time slice.
type Round struct {
	ID          int64
	RoundNumber int
	StartTime   time.Time
	EndTime     *time.Time
	Status      RoundStatus
}

// Flag is a single (team, round, vuln_type) secret.
type Flag struct {
	ID        int64
	TeamID    int
	RoundID   int64
	Value     string
	VulnType  VulnType
	CreatedAt time.Time
}

// FlagSubmission records one *accepted* capture.
type FlagSubmission struct {
	ID              int64
	SubmitterTeamID int
	TargetTeamID    int
	RoundID         int64
	FlagValue       string
	SubmittedAt     time.Time
}

// ServiceProbe is one append-only probe result.
type ServiceProbe struct {
	ID            int64
	TeamID        int
	RoundID       int64
	IsUp          bool
	ResponseTime  float64
	ErrorMessage  string
	CheckedAt     time.Time
}

// Score is the upserted per-(team, round) score row.
type Score struct {
	TeamID       int
	RoundID      int64
	SLA          float64
	Defense      float64
	Attack       float64
	Total        float64
	CalculatedAt time.Time
}

// ScoreboardEntry aggregates a team's totals across all rounds plus its
// current-round up/down status, for the /api/scoreboard endpoint.
type ScoreboardEntry struct {
	TeamID     int
	TeamName   string
	TotalSLA   float64
	TotalDef   float64
	TotalAtk   float64
	Total      float64
	IsUp       bool
	RoundsSeen int
}

// AuthResult is a tagged variant: exactly one of {invalid, admin, team}.
type AuthResult struct {
	Valid  bool
	Role   Role
	TeamID int // only meaningful when Role == RoleTeam
}

// GameState is process-local and never persisted across restarts.
type GameState struct {
	Started       bool
	CurrentRound  int
	RoundID       int64
	Phase         Phase
	PhaseDeadline *time.Time
	RemainingSecs int
}
