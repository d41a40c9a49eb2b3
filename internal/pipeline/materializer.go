package pipeline

import (
	"github.com/voicecal/voicecal-go/internal/models"
)

// buildEvent assembles the calendar event for a validated candidate.
// Provenance ties the event back to the audio and transcript it came
// from; the job's event_id pointer is the only other link.
func buildEvent(job *models.VoiceJob, transcript string, candidate models.CandidateEvent) *models.Event {
	return &models.Event{
		UserID:       job.UserID,
		CalendarID:   job.CalendarID,
		Title:        candidate.Title,
		Start:        candidate.Start,
		End:          candidate.End,
		Location:     candidate.Location,
		Description:  candidate.Description,
		AllDay:       candidate.AllDay,
		LabelID:      candidate.LabelID,
		Participants: candidate.Participants,
		Provenance: models.Provenance{
			Source:     models.SourceVoice,
			Transcript: transcript,
			AudioURL:   job.AudioURL,
		},
	}
}
