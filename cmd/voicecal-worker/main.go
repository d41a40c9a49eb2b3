// Package main provides the entry point for the voicecal trigger worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voicecal/voicecal-go/internal/config"
	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/enhance"
	"github.com/voicecal/voicecal-go/internal/extract"
	"github.com/voicecal/voicecal-go/internal/llm"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/pipeline"
	"github.com/voicecal/voicecal-go/internal/server"
	"github.com/voicecal/voicecal-go/internal/transcribe"
)

const version = "0.1.0"

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("voicecal worker starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
		"transcribe_url", cfg.TranscribeURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Build the pipeline
	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		logger.Error("failed to create LLM model", "error", err)
		os.Exit(1)
	}
	logger.Info("LLM model initialized", "provider", cfg.LLMProvider, "model", model.Model())

	collector := metrics.NewCollector()
	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Jobs:         dbClient,
		Events:       dbClient,
		Transcriber:  transcribe.NewClient(cfg, logger),
		Extractor:    extract.NewLLMExtractor(model, collector, logger),
		Enhancer:     enhance.NewRuleEnhancer(logger),
		Metrics:      collector,
		Logger:       logger,
		StageTimeout: cfg.StageTimeout,
	})

	// Sweep jobs stuck in processing
	sweeper := pipeline.NewSweeper(pipeline.SweeperConfig{
		Jobs:       dbClient,
		Metrics:    collector,
		Logger:     logger,
		StaleAfter: cfg.StaleAfter,
		Interval:   cfg.SweepInterval,
	})
	go sweeper.Run(ctx)

	// Run the trigger server (blocks until shutdown)
	srv := server.New(":"+cfg.Port, dbClient, orch, collector, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
