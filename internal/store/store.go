// Package store is the Persistent Store of spec.md §4.1: durable, ordered
// storage for teams, rounds, flags, submissions, probe results, and
// scores, backed by a single file-based sqlite database in WAL mode.
//
// Grounded on original_source/backend/models.py's init_db (schema, WAL +
// busy_timeout pragmas) and the WAL-mode single-writer pattern from
// other_examples' mistakeknot-intermute sqlite store test.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/timeutil"
)

// ErrDuplicateSubmission is returned by RecordSubmission when
// (submitter_team_id, flag_value) has already been recorded.
var ErrDuplicateSubmission = errors.New("store: flag already submitted by this team")

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// Store wraps a sqlite connection pool configured for WAL mode with a
// single writer, matching SQLite's single-writer model.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path, applies
// the WAL + busy-timeout pragmas from spec.md §4.1, and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows exactly one writer; a single pooled connection avoids
	// SQLITE_BUSY under concurrent access and keeps PRAGMAs scoped to the
	// connection they were set on.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=30000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	host TEXT NOT NULL,
	port INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rounds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	round_number INTEGER NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS flags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id INTEGER NOT NULL,
	round_id INTEGER NOT NULL,
	flag_value TEXT NOT NULL UNIQUE,
	vuln_type TEXT NOT NULL DEFAULT 'monitor',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP,
	FOREIGN KEY (team_id) REFERENCES teams(id),
	FOREIGN KEY (round_id) REFERENCES rounds(id)
);
CREATE INDEX IF NOT EXISTS idx_flags_team_round ON flags(team_id, round_id);

CREATE TABLE IF NOT EXISTS flag_submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	submitter_team_id INTEGER NOT NULL,
	target_team_id INTEGER NOT NULL,
	round_id INTEGER NOT NULL,
	flag_value TEXT NOT NULL,
	submitted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (submitter_team_id) REFERENCES teams(id),
	FOREIGN KEY (target_team_id) REFERENCES teams(id),
	FOREIGN KEY (round_id) REFERENCES rounds(id),
	UNIQUE (submitter_team_id, flag_value)
);
CREATE INDEX IF NOT EXISTS idx_submissions_round ON flag_submissions(round_id);

CREATE TABLE IF NOT EXISTS service_status (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id INTEGER NOT NULL,
	round_id INTEGER NOT NULL,
	is_up BOOLEAN NOT NULL,
	response_time REAL,
	error_message TEXT,
	checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (team_id) REFERENCES teams(id),
	FOREIGN KEY (round_id) REFERENCES rounds(id)
);
CREATE INDEX IF NOT EXISTS idx_probes_team_round ON service_status(team_id, round_id, checked_at);

CREATE TABLE IF NOT EXISTS scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id INTEGER NOT NULL,
	round_id INTEGER NOT NULL,
	sla_score REAL NOT NULL DEFAULT 0,
	defense_score REAL NOT NULL DEFAULT 0,
	attack_score REAL NOT NULL DEFAULT 0,
	total_score REAL NOT NULL DEFAULT 0,
	calculated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (team_id) REFERENCES teams(id),
	FOREIGN KEY (round_id) REFERENCES rounds(id),
	UNIQUE (team_id, round_id)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// --- Teams ---------------------------------------------------------------

// AddTeam upserts a team row, matching spec.md §3's "upsert with same id"
// re-registration invariant.
func (s *Store) AddTeam(ctx context.Context, t domain.Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, host, port) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, host=excluded.host, port=excluded.port
	`, t.ID, t.Name, t.Host, t.Port)
	if err != nil {
		return fmt.Errorf("add team %d: %w", t.ID, err)
	}
	return nil
}

type teamRow struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
	Host string `db:"host"`
	Port int    `db:"port"`
}

// GetTeams returns every registered team, ordered by id.
func (s *Store) GetTeams(ctx context.Context) ([]domain.Team, error) {
	var rows []teamRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, host, port FROM teams ORDER BY id`); err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}
	out := make([]domain.Team, len(rows))
	for i, r := range rows {
		out[i] = domain.Team{ID: r.ID, Name: r.Name, Host: r.Host, Port: r.Port}
	}
	return out, nil
}

// GetTeam returns a single team by id.
func (s *Store) GetTeam(ctx context.Context, teamID int) (*domain.Team, error) {
	var r teamRow
	err := s.db.GetContext(ctx, &r, `SELECT id, name, host, port FROM teams WHERE id=?`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team %d: %w", teamID, err)
	}
	return &domain.Team{ID: r.ID, Name: r.Name, Host: r.Host, Port: r.Port}, nil
}

// --- Rounds ----------------------------------------------------------------

// CreateRound inserts a new active round. The caller is responsible for
// ensuring no other round is currently active (spec.md §3 invariant); the
// scheduler is the sole writer of rounds and enforces this by construction.
func (s *Store) CreateRound(ctx context.Context, roundNumber int) (int64, error) {
	now := timeutil.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (round_number, start_time, status) VALUES (?, ?, ?)
	`, roundNumber, now, domain.RoundActive)
	if err != nil {
		return 0, fmt.Errorf("create round %d: %w", roundNumber, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create round %d: %w", roundNumber, err)
	}
	return id, nil
}

type roundRow struct {
	ID          int64      `db:"id"`
	RoundNumber int        `db:"round_number"`
	StartTime   time.Time  `db:"start_time"`
	EndTime     *time.Time `db:"end_time"`
	Status      string     `db:"status"`
}

func (r roundRow) toDomain() domain.Round {
	return domain.Round{
		ID:          r.ID,
		RoundNumber: r.RoundNumber,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Status:      domain.RoundStatus(r.Status),
	}
}

// GetCurrentRound returns the single active round, or ErrNotFound if none
// is active (spec.md §3 invariant: at most one active round).
func (s *Store) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	var r roundRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, round_number, start_time, end_time, status FROM rounds
		WHERE status='active' ORDER BY id DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current round: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// GetRoundByNumber returns a round by its human-facing round_number.
func (s *Store) GetRoundByNumber(ctx context.Context, roundNumber int) (*domain.Round, error) {
	var r roundRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, round_number, start_time, end_time, status FROM rounds
		WHERE round_number=? ORDER BY id DESC LIMIT 1
	`, roundNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round %d: %w", roundNumber, err)
	}
	out := r.toDomain()
	return &out, nil
}

// CloseRound marks a round closed. Closing an already-closed round is a
// no-op (spec.md §8 idempotence property).
func (s *Store) CloseRound(ctx context.Context, roundID int64) error {
	now := timeutil.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET status='closed', end_time=? WHERE id=? AND status='active'
	`, now, roundID)
	if err != nil {
		return fmt.Errorf("close round %d: %w", roundID, err)
	}
	return nil
}

// --- Flags -------------------------------------------------------------

// AddFlag inserts one minted flag.
func (s *Store) AddFlag(ctx context.Context, f domain.Flag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (team_id, round_id, flag_value, vuln_type) VALUES (?, ?, ?, ?)
	`, f.TeamID, f.RoundID, f.Value, string(f.VulnType))
	if err != nil {
		return fmt.Errorf("add flag for team %d round %d: %w", f.TeamID, f.RoundID, err)
	}
	return nil
}

type flagRow struct {
	ID        int64     `db:"id"`
	TeamID    int       `db:"team_id"`
	RoundID   int64     `db:"round_id"`
	Value     string    `db:"flag_value"`
	VulnType  string    `db:"vuln_type"`
	CreatedAt time.Time `db:"created_at"`
}

func (r flagRow) toDomain() domain.Flag {
	return domain.Flag{
		ID:        r.ID,
		TeamID:    r.TeamID,
		RoundID:   r.RoundID,
		Value:     r.Value,
		VulnType:  domain.VulnType(r.VulnType),
		CreatedAt: r.CreatedAt,
	}
}

// GetFlagByValue looks up a flag by its unique value, for submission
// validation. Flags never expire within a game run (spec.md §3), so this
// matches against any round.
func (s *Store) GetFlagByValue(ctx context.Context, value string) (*domain.Flag, error) {
	var r flagRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, team_id, round_id, flag_value, vuln_type, created_at FROM flags WHERE flag_value=?
	`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag by value: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// TeamFlags returns the vuln_type -> flag_value map for one (team, round).
func (s *Store) TeamFlags(ctx context.Context, teamID int, roundID int64) (map[domain.VulnType]string, error) {
	var rows []flagRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, team_id, round_id, flag_value, vuln_type, created_at FROM flags
		WHERE team_id=? AND round_id=?
	`, teamID, roundID)
	if err != nil {
		return nil, fmt.Errorf("get team %d flags for round %d: %w", teamID, roundID, err)
	}
	out := make(map[domain.VulnType]string, len(rows))
	for _, r := range rows {
		out[domain.VulnType(r.VulnType)] = r.Value
	}
	return out, nil
}

// --- Submissions -----------------------------------------------------------

// RecordSubmission atomically inserts an accepted submission. It returns
// ErrDuplicateSubmission if (submitter, flag_value) already exists,
// enforcing anti-replay via the unique constraint rather than a
// check-then-act race (spec.md §5).
func (s *Store) RecordSubmission(ctx context.Context, sub domain.FlagSubmission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flag_submissions (submitter_team_id, target_team_id, round_id, flag_value)
		VALUES (?, ?, ?, ?)
	`, sub.SubmitterTeamID, sub.TargetTeamID, sub.RoundID, sub.FlagValue)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

type submissionRow struct {
	ID              int64     `db:"id"`
	SubmitterTeamID int       `db:"submitter_team_id"`
	TargetTeamID    int       `db:"target_team_id"`
	RoundID         int64     `db:"round_id"`
	FlagValue       string    `db:"flag_value"`
	SubmittedAt     time.Time `db:"submitted_at"`
}

func (r submissionRow) toDomain() domain.FlagSubmission {
	return domain.FlagSubmission{
		ID:              r.ID,
		SubmitterTeamID: r.SubmitterTeamID,
		TargetTeamID:    r.TargetTeamID,
		RoundID:         r.RoundID,
		FlagValue:       r.FlagValue,
		SubmittedAt:     r.SubmittedAt,
	}
}

// SubmissionHistory returns the most recent submissions, newest first.
func (s *Store) SubmissionHistory(ctx context.Context, limit int) ([]domain.FlagSubmission, error) {
	var rows []submissionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, submitter_team_id, target_team_id, round_id, flag_value, submitted_at
		FROM flag_submissions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("submission history: %w", err)
	}
	out := make([]domain.FlagSubmission, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// StealCounts returns, for a round, how many distinct accepted
// submissions targeted each team (used by the Scoring Engine's defense
// calculation).
func (s *Store) StealCounts(ctx context.Context, roundID int64) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_team_id, COUNT(*) FROM flag_submissions WHERE round_id=? GROUP BY target_team_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("steal counts: %w", err)
	}
	defer rows.Close()
	out := make(map[int]int)
	for rows.Next() {
		var teamID, count int
		if err := rows.Scan(&teamID, &count); err != nil {
			return nil, fmt.Errorf("steal counts: %w", err)
		}
		out[teamID] = count
	}
	return out, rows.Err()
}

// AttackCounts returns, for a round, how many accepted submissions each
// team filed (used by the Scoring Engine's attack calculation).
func (s *Store) AttackCounts(ctx context.Context, roundID int64) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT submitter_team_id, COUNT(*) FROM flag_submissions WHERE round_id=? GROUP BY submitter_team_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("attack counts: %w", err)
	}
	defer rows.Close()
	out := make(map[int]int)
	for rows.Next() {
		var teamID, count int
		if err := rows.Scan(&teamID, &count); err != nil {
			return nil, fmt.Errorf("attack counts: %w", err)
		}
		out[teamID] = count
	}
	return out, rows.Err()
}

// --- Probes --------------------------------------------------------------

// RecordProbe appends one probe result row.
func (s *Store) RecordProbe(ctx context.Context, p domain.ServiceProbe) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_status (team_id, round_id, is_up, response_time, error_message)
		VALUES (?, ?, ?, ?, ?)
	`, p.TeamID, p.RoundID, p.IsUp, p.ResponseTime, nullableString(p.ErrorMessage))
	if err != nil {
		return fmt.Errorf("record probe for team %d: %w", p.TeamID, err)
	}
	return nil
}

type probeRow struct {
	ID           int64          `db:"id"`
	TeamID       int            `db:"team_id"`
	RoundID      int64          `db:"round_id"`
	IsUp         bool           `db:"is_up"`
	ResponseTime sql.NullFloat64 `db:"response_time"`
	ErrorMessage sql.NullString `db:"error_message"`
	CheckedAt    time.Time      `db:"checked_at"`
}

func (r probeRow) toDomain() domain.ServiceProbe {
	return domain.ServiceProbe{
		ID:           r.ID,
		TeamID:       r.TeamID,
		RoundID:      r.RoundID,
		IsUp:         r.IsUp,
		ResponseTime: r.ResponseTime.Float64,
		ErrorMessage: r.ErrorMessage.String,
		CheckedAt:    r.CheckedAt,
	}
}

// LatestProbePerTeam returns the effective (greatest checked_at) probe
// result for every team that has been probed in the round.
func (s *Store) LatestProbePerTeam(ctx context.Context, roundID int64) (map[int]domain.ServiceProbe, error) {
	var rows []probeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.team_id, s.round_id, s.is_up, s.response_time, s.error_message, s.checked_at
		FROM service_status s
		INNER JOIN (
			SELECT team_id, MAX(checked_at) AS max_checked
			FROM service_status WHERE round_id=?
			GROUP BY team_id
		) latest ON latest.team_id=s.team_id AND latest.max_checked=s.checked_at
		WHERE s.round_id=?
	`, roundID, roundID)
	if err != nil {
		return nil, fmt.Errorf("latest probe per team: %w", err)
	}
	out := make(map[int]domain.ServiceProbe, len(rows))
	for _, r := range rows {
		out[r.TeamID] = r.toDomain()
	}
	return out, nil
}

// --- Scores ----------------------------------------------------------------

// SaveScores upserts one team's score row for a round, matching spec.md
// §3's "rewritten idempotently each time scoring runs" requirement.
func (s *Store) SaveScores(ctx context.Context, sc domain.Score) error {
	now := timeutil.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (team_id, round_id, sla_score, defense_score, attack_score, total_score, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_id, round_id) DO UPDATE SET
			sla_score=excluded.sla_score,
			defense_score=excluded.defense_score,
			attack_score=excluded.attack_score,
			total_score=excluded.total_score,
			calculated_at=excluded.calculated_at
	`, sc.TeamID, sc.RoundID, sc.SLA, sc.Defense, sc.Attack, sc.Total, now)
	if err != nil {
		return fmt.Errorf("save score for team %d round %d: %w", sc.TeamID, sc.RoundID, err)
	}
	return nil
}

type scoreRow struct {
	TeamID       int       `db:"team_id"`
	RoundID      int64     `db:"round_id"`
	SLA          float64   `db:"sla_score"`
	Defense      float64   `db:"defense_score"`
	Attack       float64   `db:"attack_score"`
	Total        float64   `db:"total_score"`
	CalculatedAt time.Time `db:"calculated_at"`
}

func (r scoreRow) toDomain() domain.Score {
	return domain.Score{
		TeamID:       r.TeamID,
		RoundID:      r.RoundID,
		SLA:          r.SLA,
		Defense:      r.Defense,
		Attack:       r.Attack,
		Total:        r.Total,
		CalculatedAt: r.CalculatedAt,
	}
}

// RoundScores returns every team's score row for one round.
func (s *Store) RoundScores(ctx context.Context, roundID int64) ([]domain.Score, error) {
	var rows []scoreRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT team_id, round_id, sla_score, defense_score, attack_score, total_score, calculated_at
		FROM scores WHERE round_id=? ORDER BY team_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("round scores: %w", err)
	}
	out := make([]domain.Score, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// Scoreboard returns aggregated totals per team plus current-round is_up,
// sorted by descending total.
func (s *Store) Scoreboard(ctx context.Context) ([]domain.ScoreboardEntry, error) {
	teams, err := s.GetTeams(ctx)
	if err != nil {
		return nil, err
	}

	type agg struct {
		sla, def, atk, total float64
		rounds               int
	}
	aggs := make(map[int]*agg, len(teams))
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, SUM(sla_score), SUM(defense_score), SUM(attack_score), SUM(total_score), COUNT(*)
		FROM scores GROUP BY team_id
	`)
	if err != nil {
		return nil, fmt.Errorf("scoreboard aggregate: %w", err)
	}
	for rows.Next() {
		var teamID, rounds int
		var sla, def, atk, total float64
		if err := rows.Scan(&teamID, &sla, &def, &atk, &total, &rounds); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scoreboard aggregate: %w", err)
		}
		aggs[teamID] = &agg{sla: sla, def: def, atk: atk, total: total, rounds: rounds}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var currentRoundID int64 = -1
	if round, err := s.GetCurrentRound(ctx); err == nil {
		currentRoundID = round.ID
	}
	var upStatus map[int]domain.ServiceProbe
	if currentRoundID >= 0 {
		upStatus, _ = s.LatestProbePerTeam(ctx, currentRoundID)
	}

	out := make([]domain.ScoreboardEntry, 0, len(teams))
	for _, t := range teams {
		a := aggs[t.ID]
		entry := domain.ScoreboardEntry{TeamID: t.ID, TeamName: t.Name}
		if a != nil {
			entry.TotalSLA = a.sla
			entry.TotalDef = a.def
			entry.TotalAtk = a.atk
			entry.Total = a.total
			entry.RoundsSeen = a.rounds
		}
		if p, ok := upStatus[t.ID]; ok {
			entry.IsUp = p.IsUp
		}
		out = append(out, entry)
	}
	sortScoreboardDesc(out)
	return out, nil
}

func sortScoreboardDesc(entries []domain.ScoreboardEntry) {
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j-1].Total < entries[j].Total {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsFold(msg, "UNIQUE constraint failed")
}

func containsFold(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (indexFold(haystack, needle) >= 0)
}

func indexFold(haystack, needle string) int {
	// small case-sensitive substring search is sufficient: the sqlite
	// driver's error text casing is stable ("UNIQUE constraint failed").
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
