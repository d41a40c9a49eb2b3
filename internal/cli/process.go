package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
)

var processCmd = &cobra.Command{
	Use:   "process <job-id>",
	Short: "Run one job through the pipeline",
	Long: `Run the pipeline for an existing job id and print the outcome.

A job that already left pending is not re-run; its current state is
printed instead. Safe to invoke on message re-delivery.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobID := args[0]

	orch, err := newOrchestrator(ctx, metrics.NewCollector())
	if err != nil {
		return err
	}

	job, procErr := orch.Process(ctx, jobID)
	if procErr != nil && job == nil {
		return procErr
	}

	printJob(job)
	return nil
}

func printJob(job *models.VoiceJob) {
	fmt.Printf("Job:     %s\n", models.MustRecordIDString(job.ID))
	fmt.Printf("Status:  %s\n", job.Status)
	fmt.Printf("Audio:   %s\n", job.AudioURL)
	if job.Transcript != nil {
		fmt.Printf("Transcript: %s\n", *job.Transcript)
	}

	switch job.Status {
	case models.JobStatusCompleted:
		fmt.Printf("Event:   %s\n", *job.EventID)
		if job.Result != nil {
			fmt.Printf("Title:   %s\n", job.Result.Title)
			if job.Result.AllDay {
				fmt.Printf("When:    %s (all day)\n", job.Result.Start.Format("2006-01-02"))
			} else {
				fmt.Printf("When:    %s - %s\n",
					job.Result.Start.Format("2006-01-02 15:04"),
					job.Result.End.Format("15:04"))
			}
			if job.Result.Location != nil {
				fmt.Printf("Where:   %s\n", *job.Result.Location)
			}
		}
	case models.JobStatusFailed:
		fmt.Printf("Failure: %s\n", *job.FailureKind)
		fmt.Printf("Error:   %s\n", *job.ErrorMessage)
	}
}
