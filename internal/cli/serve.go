package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/pipeline"
	"github.com/voicecal/voicecal-go/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trigger server and the stuck-job sweeper",
	Long: `Serve the trigger webhook, process jobs as they arrive and
periodically fail jobs stuck in processing.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	orch, err := newOrchestrator(ctx, collector)
	if err != nil {
		return err
	}

	sweeper := pipeline.NewSweeper(pipeline.SweeperConfig{
		Jobs:       dbClient,
		Metrics:    collector,
		Logger:     logger,
		StaleAfter: cfg.StaleAfter,
		Interval:   cfg.SweepInterval,
	})
	go sweeper.Run(ctx)

	srv := server.New(":"+cfg.Port, dbClient, orch, collector, logger)
	return srv.Run(ctx)
}
