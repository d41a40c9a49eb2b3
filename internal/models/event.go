package models

import (
	"errors"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Validation errors for candidate events.
var (
	ErrEmptyTitle     = errors.New("event title is empty")
	ErrEndBeforeStart = errors.New("event ends before it starts")
	ErrZeroDuration   = errors.New("timed event must end strictly after it starts")
)

// CandidateEvent is the not-yet-materialized structured output of the
// extraction and enhancement stages.
type CandidateEvent struct {
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Location     *string   `json:"location,omitempty"`
	Description  *string   `json:"description,omitempty"`
	AllDay       bool      `json:"all_day"`
	Participants []string  `json:"participants,omitempty"`
	LabelID      *string   `json:"label_id,omitempty"`
}

// Validate checks the structural invariants of a candidate event.
// Label membership is checked separately against the owning job's
// candidate list.
func (e *CandidateEvent) Validate() error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if e.End.Before(e.Start) {
		return ErrEndBeforeStart
	}
	if !e.AllDay && !e.End.After(e.Start) {
		return ErrZeroDuration
	}
	return nil
}

// SourceVoice marks events materialized from a voice processing job.
const SourceVoice = "voice"

// Provenance records where a materialized event came from.
type Provenance struct {
	Source     string `json:"source"`
	Transcript string `json:"transcript"`
	AudioURL   string `json:"audio_url"`
}

// Event is a materialized calendar event. Created exactly once per
// completed job by the materializer and never modified by the pipeline
// afterwards.
type Event struct {
	ID           surrealmodels.RecordID `json:"id"`
	UserID       string                 `json:"user_id"`
	CalendarID   *string                `json:"calendar_id,omitempty"`
	Title        string                 `json:"title"`
	Start        time.Time              `json:"start"`
	End          time.Time              `json:"end"`
	Location     *string                `json:"location,omitempty"`
	Description  *string                `json:"description,omitempty"`
	AllDay       bool                   `json:"all_day"`
	LabelID      *string                `json:"label_id,omitempty"`
	Participants []string               `json:"participants,omitempty"`
	Provenance   Provenance             `json:"provenance"`
	Created      time.Time              `json:"created"`
	Updated      time.Time              `json:"updated"`
}
