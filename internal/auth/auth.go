// Package auth is the Token Authority of spec.md §4.2: generates one
// opaque bearer token per team plus a single admin token, persists them
// to a JSON file so restarts reuse the same tokens, and validates bearer
// tokens presented to the Control & Query API.
//
// Grounded on original_source/backend/auth.py's TokenManager (token
// shape, validate_token's tagged-result return) and app.py's
// load-or-generate TOKEN_FILE bootstrap. Constant-time comparison
// follows the teacher's crypto/subtle habit in its httpapi auth layer.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adctf/orchestrator/internal/domain"
)

// tokenFile is the on-disk JSON shape written/read at TOKEN_FILE, keyed
// "admin" and "team<id>".
type tokenFile map[string]string

// Authority holds the generated (or reloaded) token set and is safe for
// read-only concurrent use once built: tokens are fixed for the lifetime
// of the process.
type Authority struct {
	adminToken string
	teamTokens map[int]string // team id -> token
	byToken    map[string]domain.AuthResult
}

// LoadOrGenerate reads path if it exists and is well-formed, else mints a
// fresh admin token plus one token per team id and writes path. The
// returned Authority is immutable thereafter.
func LoadOrGenerate(path string, teamIDs []int) (*Authority, error) {
	if existing, err := loadFile(path); err == nil {
		auth, buildErr := fromFile(existing, teamIDs)
		if buildErr == nil {
			return auth, nil
		}
		// Fall through to regeneration if the file is stale (e.g. team
		// roster changed) — matches the spec's "deterministic for a
		// fixed roster" contract, not a partial-reuse policy.
	}

	tf := tokenFile{}
	adminSecret, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate admin token: %w", err)
	}
	adminToken := "ADMIN_" + adminSecret
	tf["admin"] = adminToken

	teamTokens := make(map[int]string, len(teamIDs))
	for _, id := range teamIDs {
		secret, err := randomHex(32)
		if err != nil {
			return nil, fmt.Errorf("generate token for team %d: %w", id, err)
		}
		token := fmt.Sprintf("TEAM%d_%s", id, secret)
		teamTokens[id] = token
		tf[fmt.Sprintf("team%d", id)] = token
	}

	if err := saveFile(path, tf); err != nil {
		return nil, err
	}

	return build(adminToken, teamTokens), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func loadFile(path string) (tokenFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, err
	}
	return tf, nil
}

func saveFile(path string, tf tokenFile) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create token directory %s: %w", dir, err)
		}
	}
	raw, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", path, err)
	}
	return nil
}

func fromFile(tf tokenFile, teamIDs []int) (*Authority, error) {
	admin, ok := tf["admin"]
	if !ok || admin == "" {
		return nil, fmt.Errorf("token file missing admin token")
	}
	teamTokens := make(map[int]string, len(teamIDs))
	for _, id := range teamIDs {
		token, ok := tf[fmt.Sprintf("team%d", id)]
		if !ok || token == "" {
			return nil, fmt.Errorf("token file missing token for team %d", id)
		}
		teamTokens[id] = token
	}
	return build(admin, teamTokens), nil
}

func build(adminToken string, teamTokens map[int]string) *Authority {
	a := &Authority{
		adminToken: adminToken,
		teamTokens: teamTokens,
		byToken:    make(map[string]domain.AuthResult, len(teamTokens)+1),
	}
	a.byToken[adminToken] = domain.AuthResult{Valid: true, Role: domain.RoleAdmin}
	for id, token := range teamTokens {
		a.byToken[token] = domain.AuthResult{Valid: true, Role: domain.RoleTeam, TeamID: id}
	}
	return a
}

// Validate resolves a bearer token to its role and, for team tokens, the
// team id. Comparison visits every known token so the cost is independent
// of which token (if any) matches, avoiding early-exit timing leaks.
func (a *Authority) Validate(token string) domain.AuthResult {
	if token == "" {
		return domain.AuthResult{Role: domain.RoleInvalid}
	}
	var result domain.AuthResult
	for candidate, res := range a.byToken {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			result = res
		}
	}
	if !result.Valid {
		return domain.AuthResult{Role: domain.RoleInvalid}
	}
	return result
}

// AdminToken returns the generated admin token, for logging at startup.
func (a *Authority) AdminToken() string { return a.adminToken }

// TeamToken returns the token minted for a given team id, if any.
func (a *Authority) TeamToken(teamID int) (string, bool) {
	t, ok := a.teamTokens[teamID]
	return t, ok
}

// IsAdmin reports whether token resolves to the admin role.
func (a *Authority) IsAdmin(token string) bool {
	res := a.Validate(token)
	return res.Valid && res.Role == domain.RoleAdmin
}
