package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"equitysync/internal/cache"
	"equitysync/internal/catalog"
	"equitysync/internal/client"
	"equitysync/internal/config"
	"equitysync/internal/fetcher"
	"equitysync/internal/market"
	"equitysync/internal/model"
	"equitysync/internal/repository"
	"equitysync/internal/scheduler"
	"equitysync/internal/service"
)

// One-shot batch sync over the enabled markets, intended for cron.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	marketsFlag := flag.String("markets", "", "comma-separated market IDs, default all enabled")
	fullWindow := flag.Bool("full", false, "fetch maximum history instead of the hot window")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := repository.InitSchema(ctx, db); err != nil {
		logger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	barRepo := repository.NewBarRepository(db, logger)
	symbolRepo := repository.NewSymbolRepository(db, logger)
	manifestRepo := repository.NewManifestRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)

	barCache, err := cache.NewBarCache(cfg.Sync.CacheDir)
	if err != nil {
		logger.Fatal("Failed to create bar cache", zap.Error(err))
	}
	listCache, err := cache.NewListCache(cfg.Sync.ListCacheDir, cache.NewStaleness())
	if err != nil {
		logger.Fatal("Failed to create list cache", zap.Error(err))
	}

	listClient := client.NewListClient(cfg.Sources.PrimaryListURL, logger)
	directoryClient := client.NewDirectoryClient(cfg.Sources.FallbackListURL, logger)
	historyClient := client.NewHistoryClient(cfg.Sources.HistoryURL, cfg.Sources.UserAgent, cfg.Sync.FetchTimeout, logger)

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

	markets := enabledMarkets(cfg.Markets.Enabled)
	syncService := service.NewSyncService(
		catalogService,
		priceFetcher,
		pool,
		manifestRepo,
		auditRepo,
		barRepo,
		symbolRepo,
		markets,
		cfg.Sync.CheckpointEvery,
		logger,
	)

	window := model.WindowHot
	if *fullWindow {
		window = model.WindowFull
	}

	targets := selectMarkets(markets, *marketsFlag)
	if len(targets) == 0 {
		logger.Fatal("No markets selected", zap.String("requested", *marketsFlag))
	}

	failed := false
	for _, id := range targets {
		summary, err := syncService.RunSync(ctx, model.RunRequest{Market: id, Window: window})
		if err != nil {
			logger.Error("Market sync failed",
				zap.String("market", id),
				zap.Error(err))
			failed = true
			if ctx.Err() != nil {
				break
			}
			continue
		}
		logger.Info("Market sync finished",
			zap.String("market", id),
			zap.Int("total", summary.Total),
			zap.Int("success", summary.Success),
			zap.Int("cache", summary.Cache),
			zap.Int("empty", summary.Empty),
			zap.Int("errors", summary.Errors),
			zap.Float64("success_rate", summary.SuccessRate()),
			zap.Duration("duration", summary.Duration))
	}

	if failed {
		os.Exit(1)
	}
}

func selectMarkets(markets map[string]market.Market, requested string) []string {
	if requested == "" {
		ids := make([]string, 0, len(markets))
		for id := range markets {
			ids = append(ids, id)
		}
		return ids
	}
	var ids []string
	for _, id := range strings.Split(requested, ",") {
		id = strings.TrimSpace(id)
		if _, ok := markets[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
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
		Encoding:         "console", // Use console encoding for human-readable output
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
