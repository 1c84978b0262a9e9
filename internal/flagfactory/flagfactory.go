// Package flagfactory is the Flag Factory of spec.md §4.3: mints one
// flag per (team, vuln type) at the start of every playing phase and
// persists them through the Store.
//
// Grounded on original_source/backend/flag_manager.py's generate_flag
// (SHA-256 over a random seed string, truncated to 32 hex characters,
// wrapped in FLAG{team_id_round_secret}) and create_flags_for_round
// (one flag per vulnerability type per team).
package flagfactory

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/timeutil"
)

// Store is the subset of the Persistent Store the factory needs.
type Store interface {
	AddFlag(ctx context.Context, f domain.Flag) error
}

// Factory mints flags in the exact hash-based format the original game
// server used, so flags captured by external tooling remain recognizable.
type Factory struct {
	store Store
}

// New builds a Factory backed by store.
func New(store Store) *Factory {
	return &Factory{store: store}
}

// Generate mints one flag value for (teamID, roundNumber, vulnType). Each
// call mixes in 16 random bytes and the current timestamp so repeated
// calls for the same inputs never collide.
func Generate(teamID int, roundNumber int, vulnType domain.VulnType) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate flag nonce: %w", err)
	}
	seed := fmt.Sprintf("%d_%d_%s_%s_%s",
		teamID, roundNumber, vulnType, hex.EncodeToString(nonce), timeutil.Format(timeutil.Now()))
	sum := sha256.Sum256([]byte(seed))
	secret := hex.EncodeToString(sum[:])[:32]
	return fmt.Sprintf("FLAG{%d_%d_%s}", teamID, roundNumber, secret), nil
}

// CreateFlagsForRound mints and persists one flag per vulnerability type
// for every team, returning the per-team map of minted values. The
// scheduler discards the map; the submission engine looks flags up
// through the Store instead.
func (f *Factory) CreateFlagsForRound(ctx context.Context, roundID int64, roundNumber int, teams []domain.Team) (map[int]map[domain.VulnType]string, error) {
	out := make(map[int]map[domain.VulnType]string, len(teams))
	for _, team := range teams {
		teamFlags := make(map[domain.VulnType]string, len(domain.VulnTypes))
		for _, vuln := range domain.VulnTypes {
			value, err := Generate(team.ID, roundNumber, vuln)
			if err != nil {
				return nil, err
			}
			flag := domain.Flag{
				TeamID:   team.ID,
				RoundID:  roundID,
				Value:    value,
				VulnType: vuln,
			}
			if err := f.store.AddFlag(ctx, flag); err != nil {
				return nil, fmt.Errorf("persist flag for team %d (%s): %w", team.ID, vuln, err)
			}
			teamFlags[vuln] = value
		}
		out[team.ID] = teamFlags
	}
	return out, nil
}
