// Command hubd runs the agent-hivemind hub: the collective memory store,
// agent registry, tool dispatcher, bridge supervisor, config-backup
// engine, ticket coordinator, and the HTTP surface that fronts all of
// them for drones and the admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/adminapi"
	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/auth"
	"github.com/lancejames221b/agent-hivemind/pkg/bridge"
	"github.com/lancejames221b/agent-hivemind/pkg/config"
	"github.com/lancejames221b/agent-hivemind/pkg/configbackup"
	"github.com/lancejames221b/agent-hivemind/pkg/logging"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
	"github.com/lancejames221b/agent-hivemind/pkg/memory/embedding"
	"github.com/lancejames221b/agent-hivemind/pkg/scheduler"
	"github.com/lancejames221b/agent-hivemind/pkg/tickets"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
	"github.com/lancejames221b/agent-hivemind/pkg/transport"
)

// Version is filled at build time with the -X linker flag.
var Version = "dev"

const shutdownDrain = 10 * time.Second

func main() {
	configFlag := flag.String("config", "", "path to config.json (overrides CONFIG_PATH)")
	hostFlag := flag.String("host", "", "override listen host from config")
	portFlag := flag.Int("port", 0, "override listen port from config")
	flag.Parse()

	path := config.ResolvePath(*configFlag)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubd: %v\n", err)
		os.Exit(1)
	}
	if *hostFlag != "" {
		cfg.Listen.Host = *hostFlag
	}
	if *portFlag != 0 {
		cfg.Listen.Port = *portFlag
	}

	log := logging.New(cfg.BaseLogger("hubd"))
	log.Info().Str("config", path).Str("version", Version).Msg("hubd: starting")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("hubd: fatal error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbeddingProvider(cfg.Storage)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	store, err := memory.OpenSQLiteStore(cfg.Storage.DBPath, embedder, cfg.Storage.Query.Hybrid)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()

	machineID := "hub-" + uuid.NewString()

	registry := agents.NewRegistry(store, machineID)
	bus := agents.NewBus(registry)

	jobStore, err := scheduler.OpenSQLiteJobStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open scheduler store: %w", err)
	}
	defer jobStore.Close()

	sched := scheduler.NewService(jobStore, log)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	backupEngine, err := configbackup.Open(cfg.Storage.DBPath, cfg.Drift, sched, log)
	if err != nil {
		return fmt.Errorf("open config backup engine: %w", err)
	}
	defer backupEngine.Close()

	ticketCoordinator := tickets.NewCoordinator(tickets.NewMemoryBoard(), store)

	toolRegistry := tools.NewRegistry()
	bridgeManager := bridge.NewManager(toolRegistry, log)
	for _, serverCfg := range cfg.Bridges {
		if err := bridgeManager.RegisterServer(ctx, serverCfg); err != nil {
			log.Warn().Err(err).Str("server_id", serverCfg.ServerID).Msg("hubd: bridge registration failed")
		}
	}
	go bridgeManager.Start(ctx)
	defer bridgeManager.Stop()

	deps := tools.BuiltinDeps{
		Memory:    store,
		Agents:    registry,
		Bus:       bus,
		Backup:    backupEngine,
		Tickets:   ticketCoordinator,
		Bridges:   bridgeManager,
		MachineID: machineID,
	}
	for _, t := range tools.BuiltinTools(deps) {
		toolRegistry.Register(t)
	}
	executor := tools.NewExecutor(toolRegistry, tools.AllowAllPolicy())

	authManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Users, time.Duration(cfg.Auth.TokenTTLM)*time.Minute)

	transportManager := transport.NewManager(bus, log)

	livenessTicker := time.NewTicker(30 * time.Second)
	defer livenessTicker.Stop()
	idleTicker := time.NewTicker(time.Minute)
	defer idleTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-livenessTicker.C:
				registry.SweepLiveness()
			case <-idleTicker.C:
				transportManager.SweepIdle()
			}
		}
	}()

	mux := http.NewServeMux()
	handler := transport.NewHandler(transportManager, executor,
		transport.WithVersion(Version),
		transport.WithMachineID(machineID),
		transport.WithSSLEnabled(cfg.Security.TLS.Enabled),
	)
	mux.Handle("/", handler)
	mux.HandleFunc("/admin/api/login", authManager.LoginHandler())
	adminapi.Mount(mux, adminapi.Deps{
		Auth:    authManager,
		Memory:  store,
		Agents:  registry,
		Bus:     bus,
		Bridges: bridgeManager,
		Tickets: ticketCoordinator,
		Backups: backupEngine,
	})

	server := &http.Server{
		Addr:    cfg.Listen.Addr(),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen.Addr()).Msg("hubd: listening")
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("hubd: shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newEmbeddingProvider(cfg memory.ResolvedConfig) (memory.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(cfg.Remote.APIKey, cfg.Remote.BaseURL, cfg.Remote.Model, cfg.Remote.Headers)
	case "local":
		return embedding.NewLocalProvider(cfg.Local.BaseURL, cfg.Local.APIKey, cfg.Local.Model, cfg.Local.Headers)
	case "none", "":
		return embedding.NewNoneProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
