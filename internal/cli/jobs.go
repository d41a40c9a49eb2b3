package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
	"github.com/voicecal/voicecal-go/internal/pipeline"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and maintain voice processing jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Watch a job live until it reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsWatch,
}

var jobsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail jobs stuck in processing past the staleness bound",
	RunE:  runJobsSweep,
}

func init() {
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum number of jobs to list")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	jobsCmd.AddCommand(jobsSweepCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	jobs, err := dbClient.ListJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-22s %-12s %-22s %-17s %s\n", "ID", "STATUS", "FAILURE", "CREATED", "USER")
	fmt.Println("--------------------------------------------------------------------------------------------")

	for i := range jobs {
		job := &jobs[i]
		failure := ""
		if job.FailureKind != nil {
			failure = *job.FailureKind
		}
		fmt.Printf("%-22s %-12s %-22s %-17s %s\n",
			models.MustRecordIDString(job.ID),
			job.Status,
			failure,
			job.Created.Format("2006-01-02 15:04"),
			job.UserID)
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	job, err := dbClient.GetJob(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("show job: %w", err)
	}

	printJob(job)
	if len(job.Labels) > 0 {
		fmt.Println("Labels:")
		for _, l := range job.Labels {
			fmt.Printf("  %s  %s\n", l.ID, l.Name)
		}
	}
	return nil
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	job, err := dbClient.GetJob(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("watch job: %w", err)
	}
	return RunJobWatch(dbClient, job)
}

func runJobsSweep(cmd *cobra.Command, args []string) error {
	sweeper := pipeline.NewSweeper(pipeline.SweeperConfig{
		Jobs:       dbClient,
		Metrics:    metrics.NewCollector(),
		Logger:     logger,
		StaleAfter: cfg.StaleAfter,
	})

	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	if n == 0 {
		fmt.Println("No stuck jobs")
	} else {
		fmt.Printf("Failed %d stuck job(s)\n", n)
	}
	return nil
}
