package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/adctf/orchestrator/internal/apierr"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/store"
)

// currentRound resolves the active round, returning (nil, nil) when no
// round is active rather than an error — many endpoints treat "no round"
// as a legitimate, zero-valued state rather than a failure.
func (s *Service) currentRound(ctx context.Context) (*domain.Round, error) {
	round, err := s.store.GetCurrentRound(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internalf("load current round: %v", err)
	}
	return round, nil
}

func pathInt(r *http.Request, key string) (int, error) {
	raw := mux.Vars(r)[key]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.BadRequestf("invalid %s", key)
	}
	return n, nil
}

// --- Auth ------------------------------------------------------------------

func (s *Service) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res := s.auth.Validate(body.Token)
	payload := map[string]any{"valid": res.Valid, "role": string(res.Role)}
	if res.Valid && res.Role == domain.RoleTeam {
		payload["team_id"] = res.TeamID
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Service) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathInt(r, "team_id")
	if err != nil {
		writeError(w, err)
		return
	}
	token, ok := s.auth.TeamToken(teamID)
	if !ok {
		writeError(w, apierr.NotFoundf("unknown team %d", teamID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// --- Status / teams / scoreboard --------------------------------------------

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	gs := s.scheduler.Status()
	payload := map[string]any{
		"started":       gs.Started,
		"current_round": gs.CurrentRound,
		"phase":         string(gs.Phase),
	}
	if gs.PhaseDeadline != nil {
		payload["remaining_seconds"] = gs.RemainingSecs
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Service) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.GetTeams(r.Context())
	if err != nil {
		writeError(w, apierr.Internalf("load teams: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Service) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.store.Scoreboard(r.Context())
	if err != nil {
		writeError(w, apierr.Internalf("load scoreboard: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Service) handleRoundScores(w http.ResponseWriter, r *http.Request) {
	n, err := pathInt(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	round, err := s.store.GetRoundByNumber(r.Context(), n)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, apierr.NotFoundf("round %d not found", n))
		return
	}
	if err != nil {
		writeError(w, apierr.Internalf("load round: %v", err))
		return
	}
	scores, err := s.store.RoundScores(r.Context(), round.ID)
	if err != nil {
		writeError(w, apierr.Internalf("load round scores: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// --- Flags -----------------------------------------------------------------

// handleFlagSubmit authenticates via the bearer/X-Team-Token header like
// every other team-scoped endpoint, but spec.md §6 additionally documents
// a body {token, flag} shape for this one endpoint, so a body token is
// accepted as a fallback when the header carries none.
func (s *Service) handleFlagSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
		Flag  string `json:"flag"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	teamID, err := requireTeam(r)
	if err != nil && body.Token != "" {
		if res := s.auth.Validate(body.Token); res.Valid && res.Role == domain.RoleTeam {
			teamID, err = res.TeamID, nil
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	round, err := s.currentRound(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if round == nil {
		writeError(w, apierr.Unavailablef("No active round"))
		return
	}

	result, err := s.submission.Submit(r.Context(), teamID, body.Flag, round.ID, round.RoundNumber)
	if err != nil {
		writeError(w, apierr.Internalf("submit flag: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        result.Success,
		"message":        result.Message,
		"target_team_id": result.TargetTeamID,
	})
}

func (s *Service) handleTeamFlag(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireTeamSelfOrAdmin(r, teamID); err != nil {
		writeError(w, err)
		return
	}

	round, err := s.currentRound(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if round == nil {
		writeJSON(w, http.StatusOK, map[string]any{"team_id": teamID, "round": 0, "flag": ""})
		return
	}

	flags, err := s.store.TeamFlags(r.Context(), teamID, round.ID)
	if err != nil {
		writeError(w, apierr.Internalf("load team flags: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team_id": teamID, "round": round.RoundNumber, "flag": flags[domain.VulnMonitor],
	})
}

func (s *Service) handleTeamFlags(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireTeamSelfOrAdmin(r, teamID); err != nil {
		writeError(w, err)
		return
	}

	empty := map[string]string{
		string(domain.VulnMonitor):  "",
		string(domain.VulnLogs):     "",
		string(domain.VulnDownload): "",
	}

	round, err := s.currentRound(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if round == nil {
		writeJSON(w, http.StatusOK, map[string]any{"team_id": teamID, "round": 0, "flags": empty})
		return
	}

	flags, err := s.store.TeamFlags(r.Context(), teamID, round.ID)
	if err != nil {
		writeError(w, apierr.Internalf("load team flags: %v", err))
		return
	}
	out := map[string]string{
		string(domain.VulnMonitor):  flags[domain.VulnMonitor],
		string(domain.VulnLogs):     flags[domain.VulnLogs],
		string(domain.VulnDownload): flags[domain.VulnDownload],
	}
	writeJSON(w, http.StatusOK, map[string]any{"team_id": teamID, "round": round.RoundNumber, "flags": out})
}

func (s *Service) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	round, err := s.currentRound(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if round == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	probes, err := s.store.LatestProbePerTeam(r.Context(), round.ID)
	if err != nil {
		writeError(w, apierr.Internalf("load service status: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, probes)
}

func (s *Service) handleFlagHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.SubmissionHistory(r.Context(), 100)
	if err != nil {
		writeError(w, apierr.Internalf("load flag history: %v", err))
		return
	}
	masked := make([]map[string]any, len(history))
	for i, h := range history {
		masked[i] = map[string]any{
			"submitter_team_id": h.SubmitterTeamID,
			"target_team_id":    h.TargetTeamID,
			"round_id":          h.RoundID,
			"flag":              maskFlag(h.FlagValue),
			"submitted_at":      h.SubmittedAt,
		}
	}
	writeJSON(w, http.StatusOK, masked)
}

func maskFlag(flag string) string {
	if len(flag) <= 8 {
		return flag + "*"
	}
	return flag[:8] + "*"
}

// --- Patches -----------------------------------------------------------------

func (s *Service) handlePatchUpload(w http.ResponseWriter, r *http.Request) {
	teamID, err := requireTeam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, apierr.BadRequestf("malformed multipart form"))
		return
	}
	file, header, err := r.FormFile("patch")
	if err != nil {
		writeError(w, apierr.BadRequestf("missing patch file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apierr.Internalf("read patch upload: %v", err))
		return
	}

	if err := s.patches.Upload(teamID, header.Filename, data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handlePatchDownload(w http.ResponseWriter, r *http.Request) {
	teamID, err := resolvePatchTeamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireTeamSelfOrAdmin(r, teamID); err != nil {
		writeError(w, err)
		return
	}
	data, err := s.patches.Fetch(teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%d_app.py"`, teamID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func resolvePatchTeamID(r *http.Request) (int, error) {
	if raw, ok := mux.Vars(r)["id"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, apierr.BadRequestf("invalid team id")
		}
		return n, nil
	}
	teamID, err := requireTeam(r)
	if err != nil {
		return 0, apierr.BadRequestf("team id required")
	}
	return teamID, nil
}

func (s *Service) handlePatchList(w http.ResponseWriter, r *http.Request) {
	res := authResult(r)
	if !res.Valid {
		writeError(w, apierr.Unauthorizedf("invalid or missing token"))
		return
	}
	names := make(map[int]string, len(s.teams))
	for _, t := range s.teams {
		names[t.ID] = t.Name
	}
	entries, err := s.patches.List(names)
	if err != nil {
		writeError(w, apierr.Internalf("list patches: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Game control ------------------------------------------------------------

func (s *Service) handleGameStart(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	if err := s.scheduler.StartGame(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleGameStop(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	if err := s.scheduler.StopGame(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	gs := s.scheduler.Status()
	lines := []string{
		fmt.Sprintf("game started: %v", gs.Started),
		fmt.Sprintf("current round: %d", gs.CurrentRound),
		fmt.Sprintf("phase: %s", gs.Phase),
		fmt.Sprintf("live observers: %d", s.hub.Count()),
	}
	writeJSON(w, http.StatusOK, lines)
}

// --- WebSocket ---------------------------------------------------------------

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	id := s.hub.Register(conn)
	defer s.hub.Unregister(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
