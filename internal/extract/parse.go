package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voicecal/voicecal-go/internal/models"
	"github.com/voicecal/voicecal-go/internal/pipeline"
)

// rawEvent is the wire shape the model is instructed to produce.
type rawEvent struct {
	Title        string   `json:"title"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Location     *string  `json:"location"`
	Description  *string  `json:"description"`
	AllDay       bool     `json:"all_day"`
	Participants []string `json:"participants"`
	LabelID      *string  `json:"label_id"`
}

// timestamp layouts the model may produce, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseResponse decodes and normalizes a model response into a candidate
// event. Missing required fields, unparseable timestamps, and label ids
// outside the job's candidate list are all reported as errors; the
// caller classifies them as ExtractionFailure.
func ParseResponse(raw string, in pipeline.Input) (models.CandidateEvent, error) {
	obj := jsonObject(raw)
	if obj == "" {
		return models.CandidateEvent{}, fmt.Errorf("no JSON object in model response")
	}

	var re rawEvent
	if err := json.Unmarshal([]byte(obj), &re); err != nil {
		return models.CandidateEvent{}, fmt.Errorf("malformed model response: %w", err)
	}

	if strings.TrimSpace(re.Title) == "" {
		return models.CandidateEvent{}, fmt.Errorf("missing required field: title")
	}
	if re.Start == "" {
		return models.CandidateEvent{}, fmt.Errorf("missing required field: start")
	}

	loc := in.Now.Location()
	start, err := parseTimestamp(re.Start, loc)
	if err != nil {
		return models.CandidateEvent{}, fmt.Errorf("unparseable start: %w", err)
	}

	var end time.Time
	if re.End != "" {
		end, err = parseTimestamp(re.End, loc)
		if err != nil {
			return models.CandidateEvent{}, fmt.Errorf("unparseable end: %w", err)
		}
	}

	event := models.CandidateEvent{
		Title:        strings.TrimSpace(re.Title),
		Start:        start,
		End:          end,
		Location:     normalizeOptional(re.Location),
		Description:  normalizeOptional(re.Description),
		AllDay:       re.AllDay,
		Participants: re.Participants,
		LabelID:      normalizeOptional(re.LabelID),
	}
	normalizeTimes(&event)

	if event.LabelID != nil {
		if !labelKnown(*event.LabelID, in.Labels) {
			return models.CandidateEvent{}, fmt.Errorf("label id %q not in candidate list", *event.LabelID)
		}
	}

	return event, nil
}

// normalizeTimes applies the deterministic time policy: a missing end
// defaults to start plus one hour, and all-day events snap to midnight
// boundaries.
func normalizeTimes(e *models.CandidateEvent) {
	if e.AllDay {
		startDay := truncateToDay(e.Start)
		endDay := startDay.AddDate(0, 0, 1)
		if !e.End.IsZero() && e.End.After(startDay.AddDate(0, 0, 1)) {
			endDay = truncateToDay(e.End)
			if endDay.Before(e.End) {
				endDay = endDay.AddDate(0, 0, 1)
			}
		}
		e.Start = startDay
		e.End = endDay
		return
	}

	if e.End.IsZero() {
		e.End = e.Start.Add(time.Hour)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func labelKnown(id string, labels []models.LabelCandidate) bool {
	for _, l := range labels {
		if l.ID == id {
			return true
		}
	}
	return false
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// jsonObject extracts the outermost JSON object substring from a model
// response, tolerating surrounding prose or code fences.
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
