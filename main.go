package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/govdash-backend/config"
	"github.com/fenilmodi00/govdash-backend/database"
	"github.com/fenilmodi00/govdash-backend/handlers"
	"github.com/fenilmodi00/govdash-backend/providers"
	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	unified := cfg.Unified()
	config.ConfigureLogging(unified.Logging)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := shared.NewServiceMetrics(registry)

	clients := shared.NewHTTPClientFactory(unified.Service.BackendTimeout)
	defer clients.CleanupAllClients()

	cacheService, err := services.NewCacheService(unified.Cache, metrics)
	if err != nil {
		logrus.Fatalf("Failed to create cache: %v", err)
	}

	// Select the primary source
	var (
		source       providers.Source
		syncReporter services.SyncStatusReporter
	)
	switch cfg.DataSource {
	case config.DataSourceIndexer:
		if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
			logrus.Fatalf("Failed to connect to indexer database: %v", err)
		}
		defer database.Close()
		indexer := providers.NewIndexerSource(database.DB, unified.Service.BackendTimeout)
		source, syncReporter = indexer, indexer
	default:
		backendClient := clients.CreateOptimizedHTTPClient(unified.Service.BackendTimeout)
		limiter := shared.NewHTTPRequestRateLimiter("koios", unified.Service.KoiosRequestsPerSec)
		koios := providers.NewKoiosProvider(cfg.KoiosBaseURL, cfg.KoiosAPIKey, backendClient, limiter)
		if cfg.BlockfrostProjectID == "" {
			logrus.Warn("BLOCKFROST_PROJECT_ID not set, Blockfrost fallback requests will be rejected")
		}
		blockfrost := providers.NewBlockfrostProvider(cfg.BlockfrostBaseURL, cfg.BlockfrostProjectID, backendClient)
		source = providers.NewProviderRouter(koios, blockfrost, unified.Service.BackendTimeout, metrics)
	}

	var enricher providers.Enricher
	if cfg.GovToolsEnabled {
		enricher = providers.NewGovToolsClient(cfg.GovToolsBaseURL,
			clients.CreateOptimizedHTTPClient(unified.Service.EnrichmentTimeout))
	}

	validator := services.NewMetadataValidator(unified.Validator,
		clients.CreateOptimizedHTTPClient(unified.Validator.Timeout), cacheService, metrics)

	governanceService := services.NewGovernanceService(source, enricher, cacheService, validator, unified.Service, cfg.DataSource)
	if syncReporter != nil {
		governanceService.SetSyncStatusReporter(syncReporter)
	}

	logrus.WithFields(logrus.Fields{
		"data_source":      cfg.DataSource,
		"network":          cfg.CardanoNetwork,
		"cache_enabled":    unified.Cache.Enabled,
		"govtools_enabled": cfg.GovToolsEnabled,
		"verifier_enabled": unified.Validator.VerifierEnabled,
	}).Info("Governance backend services initialized")

	// Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "govdash-backend",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(handlers.RequestIDMiddleware())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:request_id} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(app, governanceService)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logrus.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Warn("Server shutdown incomplete")
		}
	}()

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}
