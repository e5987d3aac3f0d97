package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equitysync/internal/cache"
	"equitysync/internal/catalog"
	"equitysync/internal/client"
	"equitysync/internal/config"
	"equitysync/internal/fetcher"
	"equitysync/internal/handler"
	"equitysync/internal/market"
	"equitysync/internal/middleware"
	"equitysync/internal/repository"
	"equitysync/internal/scheduler"
	"equitysync/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Open the warehouse
	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitSchema(context.Background(), db); err != nil {
		logger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Initialize repositories
	barRepo := repository.NewBarRepository(db, logger)
	symbolRepo := repository.NewSymbolRepository(db, logger)
	manifestRepo := repository.NewManifestRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)

	// Initialize caches
	barCache, err := cache.NewBarCache(cfg.Sync.CacheDir)
	if err != nil {
		logger.Fatal("Failed to create bar cache", zap.Error(err))
	}
	listCache, err := cache.NewListCache(cfg.Sync.ListCacheDir, cache.NewStaleness())
	if err != nil {
		logger.Fatal("Failed to create list cache", zap.Error(err))
	}

	// Initialize clients
	listClient := client.NewListClient(cfg.Sources.PrimaryListURL, logger)
	directoryClient := client.NewDirectoryClient(cfg.Sources.FallbackListURL, logger)
	historyClient := client.NewHistoryClient(cfg.Sources.HistoryURL, cfg.Sources.UserAgent, cfg.Sync.FetchTimeout, logger)

	// Initialize services
	catalogService := catalog.NewService(listClient, directoryClient, listCache, symbolRepo, cfg.Markets.SeedSymbols, logger)
	priceFetcher := fetcher.NewFetcher(
		historyClient,
		barRepo,
		barCache,
		fetcher.RetryPolicy{
			MaxAttempts: cfg.Sync.RetryLimit,
			MinBackoff:  cfg.Sync.RetryMinBackoff,
			MaxBackoff:  cfg.Sync.RetryMaxBackoff,
		},
		cfg.Sync.CacheTTL,
		cfg.Sync.CacheMinBytes,
		cfg.Sync.FetchTimeout,
		logger,
	)
	pool := scheduler.NewPool(scheduler.Options{
		Workers:       cfg.Sync.Workers,
		MinDelay:      cfg.Sync.MinDelay,
		MaxDelay:      cfg.Sync.MaxDelay,
		CooldownEvery: cfg.Sync.CooldownEvery,
		Cooldown:      cfg.Sync.Cooldown,
	}, logger)
	syncService := service.NewSyncService(
		catalogService,
		priceFetcher,
		pool,
		manifestRepo,
		auditRepo,
		barRepo,
		symbolRepo,
		enabledMarkets(cfg.Markets.Enabled),
		cfg.Sync.CheckpointEvery,
		logger,
	)

	// Initialize handlers
	syncHandler := handler.NewSyncHandler(syncService, logger)
	symbolHandler := handler.NewSymbolHandler(symbolRepo, logger)
	dataHandler := handler.NewDataHandler(barRepo, logger)
	auditHandler := handler.NewAuditHandler(auditRepo, logger)

	// Set up HTTP server with Gin
	router := setupRouter(syncHandler, symbolHandler, dataHandler, auditHandler, logger, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func enabledMarkets(ids []string) map[string]market.Market {
	all := market.Builtin()
	if len(ids) == 0 {
		return all
	}
	enabled := make(map[string]market.Market, len(ids))
	for _, id := range ids {
		if mkt, ok := all[id]; ok {
			enabled[id] = mkt
		}
	}
	return enabled
}

func setupRouter(
	syncHandler *handler.SyncHandler,
	symbolHandler *handler.SymbolHandler,
	dataHandler *handler.DataHandler,
	auditHandler *handler.AuditHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Sync run routes (requires service key)
		syncRuns := v1.Group("/sync/runs")
		syncRuns.Use(middleware.ServiceAuthMiddleware(cfg.Auth.ServiceKey, logger))
		{
			syncRuns.POST("", syncHandler.StartRun)
			syncRuns.GET("", syncHandler.ListRuns)
			syncRuns.GET("/:id", syncHandler.GetRun)
		}

		// Symbol catalog routes
		symbols := v1.Group("/symbols")
		{
			symbols.GET("", symbolHandler.GetSymbols)
			symbols.GET("/:symbol/bars", dataHandler.GetBars)
		}

		// Warehouse routes
		v1.GET("/inventory", dataHandler.GetInventory)
		v1.GET("/audit", auditHandler.ListAuditRuns)
	}
	return router
}
