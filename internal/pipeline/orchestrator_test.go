package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/enhance"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
)

var referenceNow = time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

// fakeJobStore is an in-memory store with the same compare-and-set
// semantics as the database layer.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.VoiceJob

	updateErr error
}

func newFakeJobStore(jobs ...*models.VoiceJob) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[string]*models.VoiceJob)}
	for _, j := range jobs {
		s.jobs[models.MustRecordIDString(j.ID)] = j
	}
	return s
}

func (s *fakeJobStore) GetJob(_ context.Context, id string) (*models.VoiceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %s: %w", id, db.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) UpdateJobStatus(_ context.Context, id string, expected models.JobStatus, patch map[string]any) (*models.VoiceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("update job %s: %w", id, db.ErrNotFound)
	}
	if j.Status != expected {
		return nil, fmt.Errorf("update job %s from %s: %w", id, expected, db.ErrStatusConflict)
	}

	for k, v := range patch {
		switch k {
		case "status":
			j.Status = models.JobStatus(v.(string))
		case "transcript":
			t := v.(string)
			j.Transcript = &t
		case "result":
			r := v.(models.CandidateEvent)
			j.Result = &r
		case "event_id":
			e := v.(string)
			j.EventID = &e
		case "error_message":
			m := v.(string)
			j.ErrorMessage = &m
		case "failure_kind":
			f := v.(string)
			j.FailureKind = &f
		}
	}
	j.Updated = time.Now()

	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) ListStaleProcessing(_ context.Context, cutoff time.Time) ([]models.VoiceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.VoiceJob
	for _, j := range s.jobs {
		if j.Status == models.JobStatusProcessing && j.Updated.Before(cutoff) {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (s *fakeEventStore) CreateEvent(_ context.Context, ev *models.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	s.events = append(s.events, ev)
	return fmt.Sprintf("ev%d", len(s.events)), nil
}

type fakeTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

type fakeExtractor struct {
	candidate models.CandidateEvent
	err       error
	calls     int
	lastInput Input
}

func (f *fakeExtractor) Extract(_ context.Context, in Input) (models.CandidateEvent, error) {
	f.calls++
	f.lastInput = in
	if f.err != nil {
		return models.CandidateEvent{}, f.err
	}
	return f.candidate, nil
}

type fakeEnhancer struct {
	patch enhance.Patch
	err   error
	calls int
}

func (f *fakeEnhancer) Enhance(context.Context, string, time.Time) (enhance.Patch, error) {
	f.calls++
	if f.err != nil {
		return enhance.Patch{}, f.err
	}
	return f.patch, nil
}

func testJob(id string, status models.JobStatus) *models.VoiceJob {
	return &models.VoiceJob{
		ID:       surrealmodels.RecordID{Table: "voice_job", ID: id},
		AudioURL: "https://cdn.example.com/memo.m4a",
		UserID:   "user1",
		Labels: []models.LabelCandidate{
			{ID: "lbl_work", Name: "Work"},
		},
		Status:  status,
		Created: referenceNow,
		Updated: referenceNow,
	}
}

func validCandidate() models.CandidateEvent {
	return models.CandidateEvent{
		Title: "開會",
		Start: time.Date(2025, 10, 2, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 2, 15, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	jobs        *fakeJobStore
	events      *fakeEventStore
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	enhancer    *fakeEnhancer
	collector   *metrics.Collector
	orch        *Orchestrator
}

func newFixture(job *models.VoiceJob) *fixture {
	f := &fixture{
		jobs:        newFakeJobStore(job),
		events:      &fakeEventStore{},
		transcriber: &fakeTranscriber{transcript: "明天下午兩點開會"},
		extractor:   &fakeExtractor{candidate: validCandidate()},
		enhancer:    &fakeEnhancer{},
		collector:   metrics.NewCollector(),
	}
	f.orch = NewOrchestrator(Deps{
		Jobs:        f.jobs,
		Events:      f.events,
		Transcriber: f.transcriber,
		Extractor:   f.extractor,
		Enhancer:    f.enhancer,
		Metrics:     f.collector,
		Logger:      slog.New(slog.DiscardHandler),
		Now:         func() time.Time { return referenceNow },
	})
	return f
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.EventID)
	assert.Equal(t, "ev1", *job.EventID)
	require.NotNil(t, job.Transcript)
	assert.Equal(t, "明天下午兩點開會", *job.Transcript)
	require.NotNil(t, job.Result)
	assert.Equal(t, "開會", job.Result.Title)
	assert.Nil(t, job.ErrorMessage)
	assert.Nil(t, job.FailureKind)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, "user1", ev.UserID)
	assert.Equal(t, models.SourceVoice, ev.Provenance.Source)
	assert.Equal(t, "明天下午兩點開會", ev.Provenance.Transcript)
	assert.Equal(t, "https://cdn.example.com/memo.m4a", ev.Provenance.AudioURL)

	assert.Equal(t, referenceNow, f.extractor.lastInput.Now)

	snap := f.collector.Snapshot()
	assert.Equal(t, int64(1), snap.JobsCompleted)
	require.NotNil(t, snap.Transcription)
	assert.Equal(t, int64(1), snap.Transcription.Count)
}

func TestProcessDuplicateTriggerIsNoOp(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))

	first, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, first.Status)

	second, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, second.Status)
	assert.Equal(t, *first.EventID, *second.EventID)
	assert.Equal(t, 1, f.transcriber.calls)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Len(t, f.events.events, 1)
}

func TestProcessSkipsJobAlreadyProcessing(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusProcessing))

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Zero(t, f.transcriber.calls)
}

func TestProcessUnknownJob(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))

	_, err := f.orch.Process(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestProcessTranscriptionFailureIsFailFast(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	f.transcriber.err = NewStageError(StageTranscription, FailureTranscription, errors.New("audio unreachable"))

	job, err := f.orch.Process(context.Background(), "j1")
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(FailureTranscription), *job.FailureKind)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "audio unreachable")
	assert.Nil(t, job.EventID)
	assert.Nil(t, job.Transcript)

	// No later stage runs after transcription fails.
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.enhancer.calls)
	assert.Empty(t, f.events.events)
}

func TestProcessTimeoutClassification(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	f.transcriber.err = context.DeadlineExceeded

	job, err := f.orch.Process(context.Background(), "j1")
	require.Error(t, err)

	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(FailureTimeout), *job.FailureKind)
}

func TestProcessExtractionFailureKeepsTranscript(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	f.extractor.err = errors.New("model returned prose")

	job, err := f.orch.Process(context.Background(), "j1")
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(FailureExtraction), *job.FailureKind)
	require.NotNil(t, job.Transcript)
	assert.Equal(t, "明天下午兩點開會", *job.Transcript)
	assert.Empty(t, f.events.events)
}

func TestProcessEnhancementFailureIsNonFatal(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	f.enhancer.err = errors.New("empty transcript")

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, f.enhancer.calls)
}

func TestProcessMergeFillsMissingLocation(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	loc := "台北101"
	f.enhancer.patch = enhance.Patch{Location: &loc}

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)
	require.NotNil(t, job.Result.Location)
	assert.Equal(t, "台北101", *job.Result.Location)
}

func TestProcessMergeKeepsExtractedLocation(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	extracted := "會議室A"
	c := validCandidate()
	c.Location = &extracted
	f.extractor.candidate = c

	ruleLoc := "台北101"
	f.enhancer.patch = enhance.Patch{Location: &ruleLoc}

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)
	require.NotNil(t, job.Result.Location)
	assert.Equal(t, "會議室A", *job.Result.Location)
}

func TestProcessValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.CandidateEvent)
		message string
	}{
		{
			name:    "empty title",
			mutate:  func(c *models.CandidateEvent) { c.Title = "" },
			message: "title",
		},
		{
			name: "end before start",
			mutate: func(c *models.CandidateEvent) {
				c.End = c.Start.Add(-time.Hour)
			},
			message: "ends before",
		},
		{
			name: "unknown label",
			mutate: func(c *models.CandidateEvent) {
				id := "lbl_bogus"
				c.LabelID = &id
			},
			message: "not among",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testJob("j1", models.JobStatusPending))
			c := validCandidate()
			tt.mutate(&c)
			f.extractor.candidate = c

			job, err := f.orch.Process(context.Background(), "j1")
			require.Error(t, err)

			assert.Equal(t, models.JobStatusFailed, job.Status)
			require.NotNil(t, job.FailureKind)
			assert.Equal(t, string(FailureValidation), *job.FailureKind)
			assert.Contains(t, *job.ErrorMessage, tt.message)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestProcessKnownLabelPasses(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	id := "lbl_work"
	c := validCandidate()
	c.LabelID = &id
	f.extractor.candidate = c

	job, err := f.orch.Process(context.Background(), "j1")
	require.NoError(t, err)
	require.NotNil(t, job.Result.LabelID)
	assert.Equal(t, "lbl_work", *job.Result.LabelID)
}

func TestProcessStorageFailure(t *testing.T) {
	f := newFixture(testJob("j1", models.JobStatusPending))
	f.events.err = errors.New("write refused")

	job, err := f.orch.Process(context.Background(), "j1")
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(FailureStorage), *job.FailureKind)
	assert.Nil(t, job.EventID)
}

func TestSweeperFailsStaleJobs(t *testing.T) {
	stale := testJob("stale", models.JobStatusProcessing)
	stale.Updated = referenceNow.Add(-time.Hour)
	fresh := testJob("fresh", models.JobStatusProcessing)
	fresh.Updated = referenceNow.Add(-time.Minute)
	done := testJob("done", models.JobStatusCompleted)
	done.Updated = referenceNow.Add(-time.Hour)

	store := newFakeJobStore(stale, fresh, done)
	collector := metrics.NewCollector()
	sweeper := NewSweeper(SweeperConfig{
		Jobs:       store,
		Metrics:    collector,
		Logger:     slog.New(slog.DiscardHandler),
		StaleAfter: 15 * time.Minute,
		Now:        func() time.Time { return referenceNow },
	})

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	swept, err := store.GetJob(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, swept.Status)
	require.NotNil(t, swept.FailureKind)
	assert.Equal(t, string(FailureTimeout), *swept.FailureKind)

	untouched, err := store.GetJob(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, untouched.Status)

	assert.Equal(t, int64(1), collector.Snapshot().JobsSwept)
}

func TestClassify(t *testing.T) {
	stageErr := NewStageError(StageExtraction, FailureExtraction, errors.New("bad json"))
	assert.Same(t, stageErr, Classify(StageValidation, FailureValidation, stageErr))

	timeout := Classify(StageTranscription, FailureTranscription, context.DeadlineExceeded)
	assert.Equal(t, FailureTimeout, timeout.Kind)

	plain := Classify(StageTranscription, FailureTranscription, errors.New("boom"))
	assert.Equal(t, FailureTranscription, plain.Kind)
	assert.Equal(t, StageTranscription, plain.Stage)
}
