// Package cli provides the command-line interface for voicecal.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voicecal/voicecal-go/internal/config"
	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/enhance"
	"github.com/voicecal/voicecal-go/internal/extract"
	"github.com/voicecal/voicecal-go/internal/llm"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/pipeline"
	"github.com/voicecal/voicecal-go/internal/transcribe"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	dbClient    *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "voicecal",
	Short: "Voice memo to calendar event pipeline",
	Long: `Voicecal turns recorded voice memos into structured calendar events.

Each memo becomes a persisted job that is transcribed, semantically
extracted with an LLM, enhanced with deterministic date/location rules,
validated and materialized as an event.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for commands that never touch the store
		switch cmd.Name() {
		case "version", "help", "trigger":
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// newOrchestrator builds the full stage chain against the live config.
// The LLM client is only constructed here, so commands that never run
// the pipeline stay off the provider APIs.
func newOrchestrator(ctx context.Context, collector *metrics.Collector) (*pipeline.Orchestrator, error) {
	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init LLM model: %w", err)
	}

	return pipeline.NewOrchestrator(pipeline.Deps{
		Jobs:         dbClient,
		Events:       dbClient,
		Transcriber:  transcribe.NewClient(cfg, logger),
		Extractor:    extract.NewLLMExtractor(model, collector, logger),
		Enhancer:     enhance.NewRuleEnhancer(logger),
		Metrics:      collector,
		Logger:       logger,
		StageTimeout: cfg.StageTimeout,
	}), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(jobsCmd)
}
