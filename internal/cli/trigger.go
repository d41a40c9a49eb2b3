package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voicecal/voicecal-go/internal/client"
	"github.com/voicecal/voicecal-go/internal/models"
)

var (
	triggerServer   string
	triggerUser     string
	triggerCalendar string
	triggerLabels   []string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <audio-url>",
	Short: "Submit a voice memo to a running trigger server",
	Long: `Submit a voice memo for processing via a running voicecal server.

The server accepts the job immediately and runs the pipeline in the
background; use 'voicecal jobs show' or 'jobs watch' to follow it.

Labels are passed as id=name pairs:
  voicecal trigger https://cdn.example.com/memo.m4a -u user1 -l lbl_work=Work`,
	Args: cobra.ExactArgs(1),
	RunE: runTrigger,
}

func init() {
	triggerCmd.Flags().StringVar(&triggerServer, "server", "", "trigger server base URL (default $VOICECAL_SERVER_URL)")
	triggerCmd.Flags().StringVarP(&triggerUser, "user", "u", "", "owning user id (required)")
	triggerCmd.Flags().StringVarP(&triggerCalendar, "calendar", "c", "", "target calendar id")
	triggerCmd.Flags().StringArrayVarP(&triggerLabels, "label", "l", nil, "candidate label as id=name (repeatable)")
	_ = triggerCmd.MarkFlagRequired("user")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	labels, err := parseLabelFlags(triggerLabels)
	if err != nil {
		return err
	}

	in := client.CreateJobInput{
		AudioURL: args[0],
		UserID:   triggerUser,
		Labels:   labels,
	}
	if triggerCalendar != "" {
		in.CalendarID = &triggerCalendar
	}

	job, err := client.New(triggerServer).CreateJob(context.Background(), in)
	if err != nil {
		return err
	}

	fmt.Printf("Accepted job %s (%s)\n", job.ID, job.Status)
	fmt.Printf("Follow it with: voicecal jobs watch %s\n", job.ID)
	return nil
}

func parseLabelFlags(raw []string) ([]models.LabelCandidate, error) {
	labels := make([]models.LabelCandidate, 0, len(raw))
	for _, pair := range raw {
		id, name, ok := strings.Cut(pair, "=")
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid label %q, expected id=name", pair)
		}
		labels = append(labels, models.LabelCandidate{ID: id, Name: name})
	}
	return labels, nil
}
