// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Chainwatch watches a wormhole chain for kills. It consumes the zKillboard
// killmail firehose, matches each killmail against user-defined surveillance
// profiles scoped to the current chain topology, and pushes alerts to
// subscribed WebSocket clients within a 200ms evaluation budget.
//
// # Configuration
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (config.yaml, or CONFIG_PATH), then environment variables. The minimum
// viable configuration is the mapping service endpoint:
//
//	TOPOLOGY_BASE_URL=https://map.example.com \
//	TOPOLOGY_API_TOKEN=your-map-token \
//	TOPOLOGY_MAP_ID=home-chain \
//	TOPOLOGY_HOME_SYSTEM_ID=31002238 \
//	chainwatch
//
// Docker:
//
//	docker run -d \
//	  -e TOPOLOGY_BASE_URL=https://map.example.com \
//	  -e TOPOLOGY_API_TOKEN=your-map-token \
//	  -e TOPOLOGY_MAP_ID=home-chain \
//	  -e TOPOLOGY_HOME_SYSTEM_ID=31002238 \
//	  -v chainwatch-data:/data \
//	  -p 3857:3857 \
//	  ghcr.io/tomtom215/chainwatch
//
// By default an embedded NATS JetStream server provides the killmail
// buffer, so no external broker is required. Set NATS_EMBEDDED_SERVER=false
// and NATS_URL to use an external cluster instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/chainwatch/internal/api"
	"github.com/tomtom215/chainwatch/internal/config"
	"github.com/tomtom215/chainwatch/internal/database"
	"github.com/tomtom215/chainwatch/internal/dispatch"
	"github.com/tomtom215/chainwatch/internal/emitter"
	"github.com/tomtom215/chainwatch/internal/filter"
	"github.com/tomtom215/chainwatch/internal/ingest"
	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/metrics"
	"github.com/tomtom215/chainwatch/internal/profile"
	"github.com/tomtom215/chainwatch/internal/supervisor"
	"github.com/tomtom215/chainwatch/internal/supervisor/services"
	"github.com/tomtom215/chainwatch/internal/topology"
	ws "github.com/tomtom215/chainwatch/internal/websocket"
)

// chainSource adapts the topology cache to the orchestrator's view
// contract.
type chainSource struct {
	cache *topology.Cache
}

func (c chainSource) View() dispatch.ChainView { return c.cache.View() }

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Chainwatch with supervisor tree")
	logging.Info().
		Str("map_id", cfg.Topology.MapID).
		Int64("home_system_id", cfg.Topology.HomeSystemID).
		Str("db_path", cfg.Database.Path).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Msg("Configuration loaded")

	// Alert history store
	db, err := database.OpenDuckDB(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Profile and dedup stores share the Badger engine but not a directory:
	// dedup keys are TTL-churned and would bloat the profile value log.
	profileDB, err := database.OpenBadger(cfg.Profiles.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open profile store")
	}
	defer func() {
		if err := profileDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing profile store")
		}
	}()

	dedupDB, err := database.OpenBadger(cfg.Emitter.DedupPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open dedup store")
	}
	defer func() {
		if err := dedupDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dedup store")
		}
	}()
	logging.Info().Msg("Stores initialized successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Topology cache over the mapping service, with circuit breaker
	provider := topology.NewHTTPProvider(topology.HTTPProviderConfig{
		BaseURL:        cfg.Topology.BaseURL,
		Token:          cfg.Topology.APIToken,
		RequestTimeout: cfg.Topology.RequestTimeout,
	})
	topoCache := topology.NewCache(provider, topology.CacheConfig{
		MapID:              cfg.Topology.MapID,
		RefreshInterval:    cfg.Topology.RefreshInterval,
		StalenessThreshold: cfg.Topology.StalenessThreshold,
	})

	// Warm the cache before serving so the first killmails evaluate
	// against a real chain instead of degraded Indeterminate results.
	// Failure is non-fatal: the background refresh loop retries.
	if err := topoCache.Refresh(ctx); err != nil {
		logging.Warn().Err(err).Msg("Initial topology fetch failed (will retry)")
	} else {
		logging.Info().Int64("version", topoCache.Version()).Msg("Topology cache warmed")
	}

	// Profile repository with compile-on-load
	compiler := filter.NewCompiler(cfg.Profiles.MaxDepth)
	repo := profile.NewRepository(profile.NewBadgerStore(profileDB), compiler)
	if err := repo.Load(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load profiles")
	}
	logging.Info().Int("profiles", len(repo.List())).Msg("Profiles loaded")

	collector := metrics.NewCollector()
	wsHub := ws.NewHub()

	// Embedded NATS JetStream, unless an external cluster is configured
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg := ingest.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore
		natsServer, err := ingest.NewEmbeddedServer(serverCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer natsServer.Shutdown()
		natsURL = natsServer.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	// Alert emitter: DuckDB history, Badger dedup, WebSocket + NATS fan-out
	alertStore, err := emitter.NewDuckDBStore(db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize alert store")
	}
	deduper := emitter.NewBadgerDeduper(dedupDB, cfg.Emitter.DedupTTL)

	alertPublisher, err := ingest.NewAlertPublisher(natsURL, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create alert publisher")
	}
	defer func() {
		if err := alertPublisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert publisher")
		}
	}()

	alertEmitter := emitter.New(emitter.Config{
		RateLimitWindow:  cfg.Emitter.RateLimitWindow,
		RateLimitMax:     int64(cfg.Emitter.RateLimitMax),
		PublishPerSecond: float64(cfg.Emitter.PublishPerSecond),
		QueueSize:        cfg.Emitter.QueueSize,
		PublishRetries:   cfg.Emitter.PublishRetries,
	}, alertStore, deduper, collector, emitter.NewHubPublisher(wsHub), alertPublisher)

	// Dispatch orchestrator: bounded fan-out under the per-event deadline
	evaluator := filter.NewEvaluator(cfg.Topology.HomeSystemID)
	orchestrator := dispatch.New(dispatch.Config{
		Deadline:    cfg.Dispatch.Deadline,
		Concurrency: cfg.Dispatch.Concurrency,
	}, repo, chainSource{topoCache}, evaluator, alertEmitter, collector)

	// Killmail consumer off JetStream; also folds pushed topology deltas
	consumer, err := ingest.NewConsumer(ingest.ConsumerConfig{
		URL:             natsURL,
		DurableName:     cfg.NATS.DurableName,
		CloseTimeout:    cfg.NATS.CloseTimeout,
		RetryMaxRetries: cfg.NATS.RetryMax,
		MapID:           cfg.Topology.MapID,
	}, orchestrator, topoCache, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create killmail consumer")
	}

	// HTTP API
	middleware := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins:   cfg.API.CORSOrigins,
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,
		RateLimitRequests:    cfg.API.RateLimitReqs,
		RateLimitWindow:      cfg.API.RateLimitWindow,
	})
	router := api.NewRouter(
		api.NewProfileHandlers(repo),
		api.NewAlertHandlers(alertStore, topoCache, cfg.Topology.StalenessThreshold, cfg.API.DefaultPageSize, cfg.API.MaxPageSize),
		api.NewMetricsHandlers(collector),
		api.NewKillmailHandlers(orchestrator),
		api.NewWSHandlers(wsHub, cfg.API.CORSOrigins),
		middleware,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Topology layer restarts independently of messaging and API.
	tree.AddTopologyService(services.Named("topology-cache", topoCache))

	// Messaging layer services
	tree.AddMessagingService(services.Named("websocket-hub", wsHub))
	tree.AddMessagingService(services.Named("alert-emitter", alertEmitter))
	tree.AddMessagingService(services.Named("killmail-consumer", consumer))
	logging.Info().Msg("Hub, emitter and consumer added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
