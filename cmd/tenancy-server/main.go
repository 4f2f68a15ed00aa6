package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/api"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/config"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/events"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/provisioning"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/sweep"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/tenancy-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Apply central schema migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate central schema")
	}

	schemas := storage.NewPostgresSchemaManager(store)

	// Optional: connect to NATS for deactivation events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("tenancy-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without event publishing")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
			publisher = events.NewNATSPublisher(nc)
		}
	} else {
		log.Info().Msg("NATS not configured, deactivation events disabled")
	}

	// Start REST API server
	provisioner := provisioning.NewProvisioner(store, schemas, cfg.Tenancy.BaseDomain)
	apiServer := api.NewRESTServer(cfg, store, schemas, provisioner)

	// WaitGroup for services
	var wg sync.WaitGroup

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Start expiration sweep
	if cfg.Sweep.Enabled {
		sweeper := sweep.NewSweeper(store, publisher)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Dur("interval", cfg.Sweep.Interval).Msg("Starting expiration sweep")
			sweep.Schedule(ctx, sweeper, cfg.Sweep.Interval)
		}()
	} else {
		log.Info().Msg("Expiration sweep disabled")
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Tenancy server stopped")
}
