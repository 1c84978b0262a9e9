// Command orchestratord runs the A&D CTF game orchestration core: the
// Round Scheduler and the Control & Query API, wired to a single sqlite
// Persistent Store.
//
// Grounded on the teacher's cmd/appserver/main.go: flag parsing, config
// loading, store/application wiring, signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adctf/orchestrator/internal/auth"
	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/config"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/flagfactory"
	"github.com/adctf/orchestrator/internal/httpapi"
	"github.com/adctf/orchestrator/internal/orchestrator"
	"github.com/adctf/orchestrator/internal/patchstore"
	"github.com/adctf/orchestrator/internal/prober"
	"github.com/adctf/orchestrator/internal/scheduler"
	"github.com/adctf/orchestrator/internal/scoring"
	"github.com/adctf/orchestrator/internal/store"
	"github.com/adctf/orchestrator/internal/submission"
	"github.com/adctf/orchestrator/internal/system"
	"github.com/adctf/orchestrator/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	tokensPath := flag.String("tokens", "data/tokens.json", "path to the token authority's persisted token file")
	patchesDir := flag.String("patches-dir", "data/patches", "directory the Patch Store writes uploaded patches into")
	addr := flag.String("addr", "", "HTTP listen address (overrides config server.host/port)")
	secretKey := flag.String("secret-key", "", "shared secret injected into every team container (overrides ADCTF_SECRET_KEY)")
	mainServer := flag.String("main-server", "", "address team containers report back to (overrides ADCTF_MAIN_SERVER)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config %s: %v", *configPath, err)
		return 1
	}
	log_ := logger.New(cfg.Logging)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = cfg.Server.Addr()
	}

	secret := *secretKey
	if secret == "" {
		secret = os.Getenv("ADCTF_SECRET_KEY")
	}
	main_ := *mainServer
	if main_ == "" {
		main_ = os.Getenv("ADCTF_MAIN_SERVER")
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log_.WithError(err).Error("open store")
		return 1
	}
	defer st.Close()

	if err := seedTeams(st, cfg.Teams); err != nil {
		log_.WithError(err).Error("seed teams")
		return 1
	}

	teamIDs := make([]int, len(cfg.Teams))
	for i, t := range cfg.Teams {
		teamIDs[i] = t.ID
	}
	authority, err := auth.LoadOrGenerate(*tokensPath, teamIDs)
	if err != nil {
		log_.WithError(err).Error("load or generate tokens")
		return 1
	}

	patches, err := patchstore.New(*patchesDir)
	if err != nil {
		log_.WithError(err).Error("open patch store")
		return 1
	}

	hub := broadcast.NewHub(log_.WithComponent("broadcast"))
	factory := flagfactory.New(st)
	probeEngine := prober.New(log_.WithComponent("prober"), 5*time.Second)
	scoringEngine := scoring.New(st, cfg.Scoring, log_.WithComponent("scoring"))
	orch := orchestrator.New(cfg.Orchestrator, log_.WithComponent("orchestrator"))
	submissionEngine := submission.New(st, hub)

	sched := scheduler.New(st, factory, probeEngine, scoringEngine, orch, patches, hub, cfg.Game, secret, main_, log_.WithComponent("round-scheduler"))

	api := httpapi.New(listenAddr, httpapi.Deps{
		Store:      st,
		Auth:       authority,
		Scheduler:  sched,
		Submission: submissionEngine,
		Patches:    patches,
		Hub:        hub,
		Teams:      cfg.Teams,
		Log:        log_.WithComponent("httpapi"),
	})

	manager := system.NewManager()
	if err := manager.Register(sched); err != nil {
		log_.WithError(err).Error("register scheduler")
		return 1
	}
	if err := manager.Register(api); err != nil {
		log_.WithError(err).Error("register httpapi")
		return 1
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := manager.Start(startCtx); err != nil {
		log_.WithError(err).Error("start services")
		return 1
	}
	log_.WithField("addr", listenAddr).Info("orchestratord started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log_.Info("shutdown signal received")

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := manager.Stop(stopCtx); err != nil {
		log_.WithError(err).Error("shutdown")
		return 1
	}
	log_.Info("orchestratord stopped cleanly")
	return 0
}

func seedTeams(st *store.Store, teams []config.TeamConfig) error {
	ctx := context.Background()
	for _, t := range teams {
		team := domain.Team{ID: t.ID, Name: t.Name, Host: t.Host, Port: t.Port}
		if err := st.AddTeam(ctx, team); err != nil {
			return err
		}
	}
	return nil
}
