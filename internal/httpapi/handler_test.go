package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/auth"
	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/patchstore"
	"github.com/adctf/orchestrator/internal/scheduler"
	"github.com/adctf/orchestrator/internal/store"
	"github.com/adctf/orchestrator/internal/submission"
	"github.com/adctf/orchestrator/pkg/logger"
)

// --- scheduler stub dependencies --------------------------------------------

type stubFactory struct{}

func (stubFactory) CreateFlagsForRound(ctx context.Context, roundID int64, roundNumber int, teams []domain.Team) (map[int]map[domain.VulnType]string, error) {
	return nil, nil
}

type stubProber struct{}

func (stubProber) CheckAll(ctx context.Context, teams []domain.Team) []domain.ServiceProbe { return nil }

type stubScoring struct{}

func (stubScoring) CalculateRoundScores(ctx context.Context, roundID int64) error { return nil }

type stubOrchestrator struct{}

func (stubOrchestrator) Destroy(ctx context.Context, teamIDs []int)     {}
func (stubOrchestrator) EnsureNetwork(ctx context.Context) error        { return nil }
func (stubOrchestrator) Create(ctx context.Context, team domain.Team, secretKey, mainServer string) error {
	return nil
}
func (stubOrchestrator) CopyInto(ctx context.Context, teamID int, localPath, remotePath string, reload bool) error {
	return nil
}

// --- harness -----------------------------------------------------------------

type harness struct {
	svc   *Service
	auth  *auth.Authority
	teams []config.TeamConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	teams := []domain.Team{{ID: 1, Name: "alpha", Host: "localhost", Port: 9001}, {ID: 2, Name: "bravo", Host: "localhost", Port: 9002}}
	for _, tm := range teams {
		require.NoError(t, st.AddTeam(context.Background(), tm))
	}

	authority, err := auth.LoadOrGenerate(filepath.Join(dir, "tokens.json"), []int{1, 2})
	require.NoError(t, err)

	patches, err := patchstore.New(filepath.Join(dir, "patches"))
	require.NoError(t, err)

	hub := broadcast.NewHub(logger.NewDefault("test-hub"))
	subEngine := submission.New(st, hub)

	sched := scheduler.New(
		st, stubFactory{}, stubProber{}, stubScoring{}, stubOrchestrator{}, patches, hub,
		config.GameConfig{RoundDurationSeconds: 60, PatchDurationSeconds: 30},
		"secret", "main", logger.NewDefault("test-scheduler"),
	)

	teamCfgs := []config.TeamConfig{{ID: 1, Name: "alpha"}, {ID: 2, Name: "bravo"}}

	svc := New(":0", Deps{
		Store: st, Auth: authority, Scheduler: sched, Submission: subEngine,
		Patches: patches, Hub: hub, Teams: teamCfgs, Log: logger.NewDefault("test-httpapi"),
	})
	t.Cleanup(func() { _ = sched.StopGame() })

	return &harness{svc: svc, auth: authority, teams: teamCfgs}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.svc.Router().ServeHTTP(rec, req)
	return rec
}

// --- tests ---------------------------------------------------------------

func TestHandleAuthVerify(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"token": h.auth.AdminToken()})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, true, out["valid"])
	require.Equal(t, "admin", out["role"])
}

func TestHandleStatusNoAuthRequired(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleTeamsRequiresNoSpecificAuth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/teams", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var teams []domain.Team
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teams))
	require.Len(t, teams, 2)
}

func TestHandleGameStartRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/game/start", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _ := h.auth.TeamToken(1)
	rec = h.do(t, http.MethodPost, "/api/game/start", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/game/start", h.auth.AdminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleFlagSubmitNoActiveRound(t *testing.T) {
	h := newHarness(t)
	token, _ := h.auth.TeamToken(2)
	rec := h.do(t, http.MethodPost, "/api/flag/submit", token, map[string]string{"flag": "FLAG{bogus}"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "No active round", out["error"])
}

func TestHandleTeamFlagsSelfOrAdminOnly(t *testing.T) {
	h := newHarness(t)
	token1, _ := h.auth.TeamToken(1)
	token2, _ := h.auth.TeamToken(2)

	rec := h.do(t, http.MethodGet, "/api/team/1/flags", token2, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/team/1/flags", token1, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/team/1/flags", h.auth.AdminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePatchUploadAndDownload(t *testing.T) {
	h := newHarness(t)
	token, _ := h.auth.TeamToken(1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("patch", "app.py")
	require.NoError(t, err)
	_, err = part.Write([]byte("print('hi')"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/patch/upload", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/patch/download/1", h.auth.AdminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "print('hi')")
}

func TestHandleGameStartTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	admin := h.auth.AdminToken()

	rec := h.do(t, http.MethodPost, "/api/game/start", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/game/start", admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleFlagSubmitAcceptsBodyTokenFallback(t *testing.T) {
	h := newHarness(t)
	token, _ := h.auth.TeamToken(2)

	// No Authorization header at all; the token travels in the JSON body
	// per spec.md §6's documented {token, flag} shape for this endpoint.
	rec := h.do(t, http.MethodPost, "/api/flag/submit", "", map[string]string{"token": token, "flag": "FLAG{bogus}"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "No active round", out["error"])
}

func TestHandleAuthTokenUnknownTeam(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/auth/token/999", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
