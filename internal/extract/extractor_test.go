package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voicecal/voicecal-go/internal/llm"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
	"github.com/voicecal/voicecal-go/internal/pipeline"
)

type fakeModel struct {
	response string
	usage    llm.Usage
	err      error
}

func (f *fakeModel) GenerateWithSystem(ctx context.Context, system, user string) (string, llm.Usage, error) {
	if f.err != nil {
		return "", llm.Usage{}, f.err
	}
	return f.response, f.usage, nil
}

// referenceNow is the fixed instant used throughout: 2025-10-01 10:00,
// a Wednesday.
var referenceNow = time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

func TestExtractMeetingTomorrowAfternoon(t *testing.T) {
	// Model output for "明天下午兩點開會": tomorrow 14:00, no stated end.
	model := &fakeModel{response: `{
		"title": "開會",
		"start": "2025-10-02T14:00:00",
		"end": "",
		"location": null,
		"description": null,
		"all_day": false,
		"participants": [],
		"label_id": null
	}`}

	ev, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "明天下午兩點開會",
		Now:        referenceNow,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	wantStart := time.Date(2025, 10, 2, 14, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if !ev.End.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("End = %v, want start + 1h", ev.End)
	}
	if ev.AllDay {
		t.Error("AllDay = true, want false")
	}
}

func TestExtractAllDayDayAfterTomorrow(t *testing.T) {
	// Model output for "後天全天休假": all-day two dates ahead.
	model := &fakeModel{response: `{
		"title": "休假",
		"start": "2025-10-03T00:00:00",
		"all_day": true
	}`}

	ev, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "後天全天休假",
		Now:        referenceNow,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	wantStart := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if !ev.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", ev.End, wantEnd)
	}
	if !ev.AllDay {
		t.Error("AllDay = false, want true")
	}
}

func TestExtractAllDaySnapsMidDayTimestamps(t *testing.T) {
	// Even if the model emits a mid-day start for an all-day event, the
	// window snaps to midnight boundaries.
	model := &fakeModel{response: `{
		"title": "休假",
		"start": "2025-10-03T09:00:00",
		"end": "2025-10-03T18:00:00",
		"all_day": true
	}`}

	ev, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "後天全天休假",
		Now:        referenceNow,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !ev.Start.Equal(time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v, want midnight", ev.Start)
	}
	if !ev.End.Equal(time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End = %v, want next midnight", ev.End)
	}
}

func TestExtractRejectsUnknownLabel(t *testing.T) {
	model := &fakeModel{response: `{
		"title": "開會",
		"start": "2025-10-02T14:00:00",
		"label_id": "invented"
	}`}

	_, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "明天下午兩點開會",
		Now:        referenceNow,
		Labels:     []models.LabelCandidate{{ID: "work", Name: "Work"}},
	})

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != pipeline.FailureExtraction {
		t.Fatalf("error = %v, want ExtractionFailure", err)
	}
}

func TestExtractAcceptsKnownLabel(t *testing.T) {
	model := &fakeModel{response: `{
		"title": "開會",
		"start": "2025-10-02T14:00:00",
		"label_id": "work"
	}`}

	ev, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "明天下午兩點開會",
		Now:        referenceNow,
		Labels:     []models.LabelCandidate{{ID: "work", Name: "Work"}},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ev.LabelID == nil || *ev.LabelID != "work" {
		t.Errorf("LabelID = %v, want work", ev.LabelID)
	}
}

func TestExtractModelTimeout(t *testing.T) {
	model := &fakeModel{err: context.DeadlineExceeded}

	_, err := NewLLMExtractor(model, nil, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "明天開會",
		Now:        referenceNow,
	})

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != pipeline.FailureTimeout {
		t.Fatalf("error = %v, want TimeoutFailure", err)
	}
}

func TestExtractRecordsTokenUsage(t *testing.T) {
	model := &fakeModel{
		response: `{"title":"開會","start":"2025-10-02T14:00:00"}`,
		usage:    llm.Usage{InputTokens: 250, OutputTokens: 45},
	}
	collector := metrics.NewCollector()

	_, err := NewLLMExtractor(model, collector, nil).Extract(context.Background(), pipeline.Input{
		Transcript: "明天下午兩點開會",
		Now:        referenceNow,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	// Stage timing is recorded by the orchestrator around the call.
	collector.RecordTiming(pipeline.StageExtraction, time.Millisecond)
	snap := collector.Snapshot()
	if snap.Extraction == nil || snap.Extraction.TotalInputTokens == nil {
		t.Fatal("extraction token stats missing from snapshot")
	}
	if *snap.Extraction.TotalInputTokens != 250 || *snap.Extraction.TotalOutputTokens != 45 {
		t.Errorf("tokens = %d/%d, want 250/45",
			*snap.Extraction.TotalInputTokens, *snap.Extraction.TotalOutputTokens)
	}
}

func TestParseResponse(t *testing.T) {
	in := pipeline.Input{Now: referenceNow}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "json inside code fence",
			raw:  "```json\n{\"title\":\"開會\",\"start\":\"2025-10-02T14:00:00\"}\n```",
		},
		{
			name: "json with surrounding prose",
			raw:  "Here is the event: {\"title\":\"開會\",\"start\":\"2025-10-02 14:00\"} Done.",
		},
		{
			name:    "no json at all",
			raw:     "I could not find an event.",
			wantErr: true,
		},
		{
			name:    "missing title",
			raw:     `{"start":"2025-10-02T14:00:00"}`,
			wantErr: true,
		},
		{
			name:    "missing start",
			raw:     `{"title":"開會"}`,
			wantErr: true,
		},
		{
			name:    "unparseable timestamp",
			raw:     `{"title":"開會","start":"tomorrow at two"}`,
			wantErr: true,
		},
		{
			name:    "truncated json",
			raw:     `{"title":"開會","start":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.raw, in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildPromptContainsReferenceAndLabels(t *testing.T) {
	prompt := buildPrompt(pipeline.Input{
		Transcript: "明天下午兩點開會",
		Now:        referenceNow,
		Labels:     []models.LabelCandidate{{ID: "work", Name: "Work"}},
	})

	for _, want := range []string{"2025-10-01T10:00:00", "Wednesday", "work: Work", "明天下午兩點開會"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
