package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"equitysync/internal/config"
	"equitysync/internal/repository"
)

// Reconciles the has_data flags on the symbol catalog against the stored
// bars and compacts the warehouse. Useful after manual imports or deletes.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	compact := flag.Bool("compact", true, "reclaim space after repairing flags")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
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

	ctx := context.Background()
	if err := repository.InitSchema(ctx, db); err != nil {
		logger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	symbolRepo := repository.NewSymbolRepository(db, logger)
	barRepo := repository.NewBarRepository(db, logger)

	repaired, err := symbolRepo.RepairDataFlags(ctx)
	if err != nil {
		logger.Fatal("Failed to repair data availability flags", zap.Error(err))
	}
	logger.Info("Repaired data availability flags", zap.Int64("rows", repaired))

	if *compact {
		if err := barRepo.Compact(ctx); err != nil {
			logger.Fatal("Failed to compact warehouse", zap.Error(err))
		}
		logger.Info("Warehouse compacted")
	}
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
