package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/enhance"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
)

// Transcriber converts remote audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Extractor derives a candidate event from a transcript.
type Extractor interface {
	Extract(ctx context.Context, in Input) (models.CandidateEvent, error)
}

// Enhancer runs the deterministic rule pass over the transcript.
type Enhancer interface {
	Enhance(ctx context.Context, transcript string, now time.Time) (enhance.Patch, error)
}

// JobStore is the slice of the database layer the orchestrator needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.VoiceJob, error)
	UpdateJobStatus(ctx context.Context, id string, expected models.JobStatus, patch map[string]any) (*models.VoiceJob, error)
	ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.VoiceJob, error)
}

// EventStore persists materialized events.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *models.Event) (string, error)
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Jobs        JobStore
	Events      EventStore
	Transcriber Transcriber
	Extractor   Extractor
	Enhancer    Enhancer

	Metrics *metrics.Collector
	Logger  *slog.Logger

	// StageTimeout bounds each network-bound stage. Zero means no bound.
	StageTimeout time.Duration

	// Now is the reference clock for relative time resolution.
	// Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator owns the job state machine. It claims a pending job,
// runs the stages, and writes exactly one terminal transition per job.
type Orchestrator struct {
	jobs        JobStore
	events      EventStore
	transcriber Transcriber
	extractor   Extractor
	enhancer    Enhancer

	metrics      *metrics.Collector
	logger       *slog.Logger
	stageTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		jobs:         deps.Jobs,
		events:       deps.Events,
		transcriber:  deps.Transcriber,
		extractor:    deps.Extractor,
		enhancer:     deps.Enhancer,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		stageTimeout: deps.StageTimeout,
		now:          deps.Now,
	}
}

// Process runs one job to a terminal status. It is safe to call any
// number of times per job: only the call that wins the pending to
// processing compare-and-set runs the stages, every other call returns
// the job's current record untouched.
//
// The returned error is the stage failure for a job that ends failed.
// The job record itself always reflects the terminal state.
func (o *Orchestrator) Process(ctx context.Context, jobID string) (*models.VoiceJob, error) {
	job, err := o.jobs.UpdateJobStatus(ctx, jobID, models.JobStatusPending, map[string]any{
		"status": string(models.JobStatusProcessing),
	})
	if err != nil {
		if errors.Is(err, db.ErrStatusConflict) {
			current, getErr := o.jobs.GetJob(ctx, jobID)
			if getErr != nil {
				return nil, getErr
			}
			o.logger.Info("duplicate trigger ignored",
				"job", jobID, "status", current.Status)
			return current, nil
		}
		return nil, err
	}

	o.logger.Info("job claimed", "job", jobID, "audio_url", job.AudioURL)

	transcript, candidate, stageErr := o.runStages(ctx, job)
	if stageErr != nil {
		return o.fail(ctx, jobID, transcript, stageErr)
	}
	return o.complete(ctx, job, transcript, candidate)
}

// runStages executes transcription, extraction, enhancement and
// validation. It returns the transcript obtained so far even on
// failure so the terminal record can carry it.
func (o *Orchestrator) runStages(ctx context.Context, job *models.VoiceJob) (string, models.CandidateEvent, *StageError) {
	var none models.CandidateEvent

	transcript, err := timedStage(o, ctx, StageTranscription, func(ctx context.Context) (string, error) {
		return o.transcriber.Transcribe(ctx, job.AudioURL)
	})
	if err != nil {
		return "", none, Classify(StageTranscription, FailureTranscription, err)
	}

	jobID := models.MustRecordIDString(job.ID)
	if _, err := o.jobs.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, map[string]any{
		"transcript": transcript,
	}); err != nil {
		return transcript, none, Classify(StageTranscription, FailureStorage, err)
	}

	now := o.now()
	candidate, err := timedStage(o, ctx, StageExtraction, func(ctx context.Context) (models.CandidateEvent, error) {
		return o.extractor.Extract(ctx, Input{
			Transcript: transcript,
			Now:        now,
			Labels:     job.Labels,
		})
	})
	if err != nil {
		return transcript, none, Classify(StageExtraction, FailureExtraction, err)
	}

	// The enhancement pass is advisory: a failure here degrades the
	// result, it does not fail the job.
	patch, err := timedStage(o, ctx, StageEnhancement, func(ctx context.Context) (enhance.Patch, error) {
		return o.enhancer.Enhance(ctx, transcript, now)
	})
	if err != nil {
		o.logger.Warn("enhancement pass failed, continuing with extraction only",
			"job", jobID, "error", err)
	} else {
		o.merge(jobID, &candidate, patch)
	}

	if err := o.validate(job, &candidate); err != nil {
		return transcript, none, NewStageError(StageValidation, FailureValidation, err)
	}

	return transcript, candidate, nil
}

// merge folds the rule-pass patch into the extracted candidate.
// Extraction wins every conflict: the patch only fills fields the
// extraction left empty, and span disagreements are logged, not applied.
func (o *Orchestrator) merge(jobID string, candidate *models.CandidateEvent, patch enhance.Patch) {
	if patch.Location != nil && candidate.Location == nil {
		candidate.Location = patch.Location
		o.logger.Debug("location filled from rule pass", "job", jobID, "location", *patch.Location)
	}
	if patch.Span != nil && !patch.Span.Start.Equal(candidate.Start) {
		o.logger.Debug("time span disagreement, keeping extraction",
			"job", jobID,
			"extracted_start", candidate.Start,
			"rule_start", patch.Span.Start)
	}
}

func (o *Orchestrator) validate(job *models.VoiceJob, candidate *models.CandidateEvent) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	if candidate.LabelID != nil && !job.HasLabel(*candidate.LabelID) {
		return fmt.Errorf("label %q is not among the job's candidates", *candidate.LabelID)
	}
	return nil
}

// complete materializes the event and writes the completed transition.
func (o *Orchestrator) complete(ctx context.Context, job *models.VoiceJob, transcript string, candidate models.CandidateEvent) (*models.VoiceJob, error) {
	jobID := models.MustRecordIDString(job.ID)

	eventID, err := timedStage(o, ctx, StageMaterialization, func(ctx context.Context) (string, error) {
		return o.events.CreateEvent(ctx, buildEvent(job, transcript, candidate))
	})
	if err != nil {
		return o.fail(ctx, jobID, transcript, Classify(StageMaterialization, FailureStorage, err))
	}

	updated, err := o.jobs.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, map[string]any{
		"status":   string(models.JobStatusCompleted),
		"result":   candidate,
		"event_id": eventID,
	})
	if err != nil {
		return nil, fmt.Errorf("persist completion for job %s: %w", jobID, err)
	}

	o.metrics.RecordOutcome(metrics.OutcomeCompleted)
	o.logger.Info("job completed", "job", jobID, "event", eventID, "title", candidate.Title)
	return updated, nil
}

// fail writes the failed transition and returns the stage error.
func (o *Orchestrator) fail(ctx context.Context, jobID, transcript string, stageErr *StageError) (*models.VoiceJob, error) {
	patch := map[string]any{
		"status":        string(models.JobStatusFailed),
		"error_message": stageErr.Error(),
		"failure_kind":  string(stageErr.Kind),
	}
	if transcript != "" {
		patch["transcript"] = transcript
	}

	updated, err := o.jobs.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, patch)
	if err != nil {
		return nil, fmt.Errorf("persist failure for job %s: %w", jobID, err)
	}

	o.metrics.RecordOutcome(metrics.OutcomeFailed)
	o.logger.Error("job failed",
		"job", jobID, "stage", stageErr.Stage, "kind", stageErr.Kind, "error", stageErr.Err)
	return updated, stageErr
}

// timedStage runs fn under the stage timeout and records its duration.
func timedStage[T any](o *Orchestrator, ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx)
	o.metrics.RecordTiming(stage, time.Since(start))
	return out, err
}
