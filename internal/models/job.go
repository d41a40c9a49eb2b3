// Package models defines the persisted data structures for the voicecal pipeline.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobStatus is the lifecycle state of a voice processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// LabelCandidate is one entry of the ordered label list a job carries.
// The extraction stage may pick at most one of these ids for the event.
type LabelCandidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoiceJob is a persisted record tracking one voice-to-event conversion attempt.
//
// Invariants maintained by the orchestrator and the store:
//   - EventID is set if and only if Status is completed.
//   - ErrorMessage (and FailureKind) are set if and only if Status is failed.
//   - Once Status leaves pending it never returns; completed and failed
//     are immutable.
type VoiceJob struct {
	ID           surrealmodels.RecordID `json:"id"`
	AudioURL     string                 `json:"audio_url"`
	UserID       string                 `json:"user_id"`
	CalendarID   *string                `json:"calendar_id,omitempty"`
	Labels       []LabelCandidate       `json:"labels,omitempty"`
	Status       JobStatus              `json:"status"`
	Transcript   *string                `json:"transcript,omitempty"`
	Result       *CandidateEvent        `json:"result,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	FailureKind  *string                `json:"failure_kind,omitempty"`
	EventID      *string                `json:"event_id,omitempty"`
	Created      time.Time              `json:"created"`
	Updated      time.Time              `json:"updated"`
}

// HasLabel reports whether id appears in the job's candidate label list.
func (j *VoiceJob) HasLabel(id string) bool {
	for _, l := range j.Labels {
		if l.ID == id {
			return true
		}
	}
	return false
}
