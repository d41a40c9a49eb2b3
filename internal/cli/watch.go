package cli

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/models"
)

const pollInterval = time.Second

// Theme holds the color scheme for the watch display.
type Theme struct {
	Status  color.Color
	Success color.Color
	Error   color.Color
	Hint    color.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job record
type jobUpdateMsg struct {
	job *models.VoiceJob
	err error
}

// watchModel is the bubbletea model for the live job view.
type watchModel struct {
	store    *db.Client
	jobID    string
	job      *models.VoiceJob
	spinner  spinner.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newWatchModel creates a new watch model.
func newWatchModel(store *db.Client, job *models.VoiceJob) watchModel {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(defaultTheme.statusStyle()),
	)

	return watchModel{
		store:   store,
		jobID:   models.MustRecordIDString(job.ID),
		job:     job,
		spinner: sp,
		theme:   defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
	)
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job

		if m.job.Status.Terminal() {
			m.done = true
			if m.job.Status == models.JobStatusFailed {
				if m.job.ErrorMessage != nil {
					m.err = fmt.Errorf("%s", *m.job.ErrorMessage)
				} else {
					m.err = fmt.Errorf("job failed with unknown error")
				}
			}
			return m, tea.Quit
		}

		// Continue polling for live jobs
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m watchModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.job == nil {
		return "Loading job status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	stage := currentStage(m.job)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s%s\n%s\n", status, m.spinner.View(), stage, hint)
}

// currentStage names the stage a live job is in, inferred from what the
// record already carries.
func currentStage(job *models.VoiceJob) string {
	switch {
	case job.Status == models.JobStatusPending:
		return "waiting for a worker"
	case job.Transcript == nil:
		return "transcribing audio"
	default:
		return "extracting event"
	}
}

// finalView renders the completion message.
func (m watchModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'voicecal jobs show %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		out := m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
		if m.job != nil && m.job.FailureKind != nil {
			out += m.theme.hintStyle().Render(fmt.Sprintf("  (%s)\n", *m.job.FailureKind))
		}
		return out
	}

	if m.job != nil && m.job.Result != nil {
		r := m.job.Result
		var output string
		output += m.theme.completedStyle().Render("✓ Event created") + "\n\n"
		output += fmt.Sprintf("  Title:  %s\n", r.Title)
		if r.AllDay {
			output += fmt.Sprintf("  When:   %s (all day)\n", r.Start.Format("2006-01-02"))
		} else {
			output += fmt.Sprintf("  When:   %s - %s\n",
				r.Start.Format("2006-01-02 15:04"), r.End.Format("15:04"))
		}
		if r.Location != nil {
			output += fmt.Sprintf("  Where:  %s\n", *r.Location)
		}
		if m.job.EventID != nil {
			output += fmt.Sprintf("  Event:  %s\n", *m.job.EventID)
		}
		return output
	}

	return m.theme.completedStyle().Render("✓ Completed\n")
}

// fetchJob fetches the current job record from the store.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m watchModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.store.GetJob(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobWatch runs the interactive live view for a job.
// Returns nil on success or Ctrl+C (background), error on job failure.
func RunJobWatch(store *db.Client, job *models.VoiceJob) error {
	model := newWatchModel(store, job)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("watch UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
