// Package httpapi is the Control & Query API of spec.md §4.11 / §6: a
// request-scoped façade translating authenticated HTTP calls into Store
// reads, Submission Engine calls, Patch Store calls, and Scheduler
// commands.
//
// Grounded on the teacher's cmd/gateway router composition (gorilla/mux,
// subrouters, CORS + auth middleware chain) generalized from the
// teacher's API-key/JWT auth to this system's opaque bearer tokens.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/adctf/orchestrator/internal/auth"
	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/metrics"
	"github.com/adctf/orchestrator/internal/patchstore"
	"github.com/adctf/orchestrator/internal/scheduler"
	"github.com/adctf/orchestrator/internal/store"
	"github.com/adctf/orchestrator/internal/submission"
	"github.com/adctf/orchestrator/internal/system"
	"github.com/adctf/orchestrator/pkg/logger"
)

var _ system.Service = (*Service)(nil)

// Service is the HTTP/WebSocket server exposing the Control & Query API.
type Service struct {
	store      *store.Store
	auth       *auth.Authority
	scheduler  *scheduler.Scheduler
	submission *submission.Engine
	patches    *patchstore.Store
	hub        *broadcast.Hub
	teams      []config.TeamConfig
	log        *logger.Logger

	server   *http.Server
	upgrader websocket.Upgrader
	addr     string
}

// Deps bundles the Service's wiring dependencies.
type Deps struct {
	Store      *store.Store
	Auth       *auth.Authority
	Scheduler  *scheduler.Scheduler
	Submission *submission.Engine
	Patches    *patchstore.Store
	Hub        *broadcast.Hub
	Teams      []config.TeamConfig
	Log        *logger.Logger
}

// New builds the Service bound to addr.
func New(addr string, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Service{
		store:      deps.Store,
		auth:       deps.Auth,
		scheduler:  deps.Scheduler,
		submission: deps.Submission,
		patches:    deps.Patches,
		hub:        deps.Hub,
		teams:      deps.Teams,
		log:        log,
		addr:       addr,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Name identifies this service to the system.Manager.
func (s *Service) Name() string { return "httpapi" }

func (s *Service) teamName(teamID int) string {
	for _, t := range s.teams {
		if t.ID == teamID {
			return t.Name
		}
	}
	return ""
}

// Router builds the full route tree, for direct use in tests.
func (s *Service) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(s.withAuth)
	r.Use(metrics.InstrumentHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/verify", s.handleAuthVerify).Methods(http.MethodPost)
	api.HandleFunc("/auth/token/{team_id}", s.handleAuthToken).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	api.HandleFunc("/scoreboard", s.handleScoreboard).Methods(http.MethodGet)
	api.HandleFunc("/round/{n}/scores", s.handleRoundScores).Methods(http.MethodGet)
	api.HandleFunc("/flag/submit", s.handleFlagSubmit).Methods(http.MethodPost)
	api.HandleFunc("/team/{id}/flag", s.handleTeamFlag).Methods(http.MethodGet)
	api.HandleFunc("/team/{id}/flags", s.handleTeamFlags).Methods(http.MethodGet)
	api.HandleFunc("/service-status", s.handleServiceStatus).Methods(http.MethodGet)
	api.HandleFunc("/flag/history", s.handleFlagHistory).Methods(http.MethodGet)
	api.HandleFunc("/patch/upload", s.handlePatchUpload).Methods(http.MethodPost)
	api.HandleFunc("/patch/download/{id}", s.handlePatchDownload).Methods(http.MethodGet)
	api.HandleFunc("/patch/download", s.handlePatchDownload).Methods(http.MethodGet)
	api.HandleFunc("/patch/list", s.handlePatchList).Methods(http.MethodGet)
	api.HandleFunc("/game/start", s.handleGameStart).Methods(http.MethodPost)
	api.HandleFunc("/game/stop", s.handleGameStop).Methods(http.MethodPost)
	api.HandleFunc("/admin/logs", s.handleAdminLogs).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.handleWebSocket)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Team-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP.
func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server exited")
		}
	}()
	s.log.WithField("addr", s.addr).Info("httpapi listening")
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
