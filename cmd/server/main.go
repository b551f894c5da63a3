// Package main is the entry point for the Conjure dashboard service.
// It serves cached cryptocurrency market data through a rate-limited,
// retrying CoinGecko client and keeps the cache warm with a background
// refresh job.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sorceryai/conjure/internal/clientdata"
	"github.com/sorceryai/conjure/internal/config"
	"github.com/sorceryai/conjure/internal/database"
	"github.com/sorceryai/conjure/internal/events"
	"github.com/sorceryai/conjure/internal/fetch"
	"github.com/sorceryai/conjure/internal/market"
	"github.com/sorceryai/conjure/internal/reliability"
	"github.com/sorceryai/conjure/internal/scheduler"
	"github.com/sorceryai/conjure/internal/server"
	"github.com/sorceryai/conjure/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Conjure")

	// Client data cache database
	clientDataDB, err := database.New(database.Config{
		Path:    cfg.ClientDataDBPath(),
		Profile: database.ProfileCache,
		Name:    "clientdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer clientDataDB.Close()

	log.Info().Str("path", clientDataDB.Path()).Msg("Client data cache ready")

	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	if err := cacheRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client data schema")
	}

	// Rate-limited fetch client for the price API
	fetchOpts := fetch.DefaultOptions(cfg.Fetch.BaseURL)
	fetchOpts.MaxRequests = cfg.Fetch.MaxRequests
	fetchOpts.Window = cfg.Fetch.Window
	fetchOpts.MaxRetries = cfg.Fetch.MaxRetries
	fetchOpts.BaseDelay = cfg.Fetch.BaseDelay
	fetchOpts.MaxDelay = cfg.Fetch.MaxDelay
	fetchOpts.CacheTTL = cfg.Fetch.CacheTTL
	fetchOpts.CacheMaxEntries = cfg.Fetch.CacheMax

	fetchClient := fetch.NewClient(fetchOpts, log)

	marketParams := market.Params{
		VsCurrency: cfg.Market.VsCurrency,
		Order:      cfg.Market.Order,
		PerPage:    cfg.Market.PerPage,
		Page:       cfg.Market.Page,
		Sparkline:  true,
	}
	marketClient := market.NewClient(fetchClient, log)
	marketService := market.NewService(marketClient, cacheRepo, marketParams, log)

	bus := events.NewBus(log)

	// Background jobs
	sched := scheduler.New(log)
	refreshJob := scheduler.NewMarketRefreshJob(marketService, bus, log)
	refreshSchedule := fmt.Sprintf("@every %ds", cfg.Market.RefreshSec)
	if err := sched.AddJob(refreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register market refresh job")
	}

	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("@hourly", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	// Nightly integrity check and WAL checkpoint (3 AM)
	maintenanceJob := reliability.NewMaintenanceJob([]*database.DB{clientDataDB}, log)
	if err := sched.AddJob("0 0 3 * * *", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	sched.Start()
	defer sched.Stop()

	// Warm the cache before serving
	if err := sched.RunNow(refreshJob); err != nil {
		log.Warn().Err(err).Msg("Initial market refresh failed, serving stale or empty data")
	}

	srv := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		DataDir:       cfg.DataDir,
		MarketService: marketService,
		RefreshJob:    refreshJob,
		Scheduler:     sched,
		EventBus:      bus,
		ClientDataDB:  clientDataDB,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Conjure stopped")
}
