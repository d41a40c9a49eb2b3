package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/voicecal/voicecal-go/internal/models"
)

// CreateJobInput carries the trigger payload for a new job record.
type CreateJobInput struct {
	AudioURL   string
	UserID     string
	CalendarID *string
	Labels     []models.LabelCandidate
}

// CreateJob persists a new job in the pending status.
func (c *Client) CreateJob(ctx context.Context, in CreateJobInput) (*models.VoiceJob, error) {
	labels := in.Labels
	if labels == nil {
		labels = []models.LabelCandidate{}
	}

	results, err := surrealdb.Query[[]models.VoiceJob](ctx, c.db, `
		CREATE voice_job CONTENT {
			audio_url: $audio_url,
			user_id: $user_id,
			calendar_id: $calendar_id,
			labels: $labels,
			status: 'pending'
		}
	`, map[string]any{
		"audio_url":   in.AudioURL,
		"user_id":     in.UserID,
		"calendar_id": in.CalendarID,
		"labels":      labels,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create job: no record returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetJob retrieves a job by id. Returns ErrNotFound if it does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*models.VoiceJob, error) {
	results, err := surrealdb.Query[[]models.VoiceJob](ctx, c.db, `
		SELECT * FROM type::record("voice_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// UpdateJobStatus applies patch to the job only if its current status
// equals expected, returning the updated record. A job in any other
// status leaves the record untouched and returns ErrStatusConflict.
// This is the compare-and-set primitive the orchestrator's idempotency
// guarantee is built on.
func (c *Client) UpdateJobStatus(ctx context.Context, id string, expected models.JobStatus, patch map[string]any) (*models.VoiceJob, error) {
	merged := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		merged[k] = v
	}
	merged["updated"] = time.Now().UTC()

	results, err := surrealdb.Query[[]models.VoiceJob](ctx, c.db, `
		UPDATE type::record("voice_job", $id)
		MERGE $patch
		WHERE status = $expected
		RETURN AFTER
	`, map[string]any{
		"id":       id,
		"patch":    merged,
		"expected": string(expected),
	})
	if err != nil {
		return nil, fmt.Errorf("update job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("update job %s from %s: %w", id, expected, ErrStatusConflict)
	}
	return &(*results)[0].Result[0], nil
}

// ListJobs returns jobs ordered most recent first.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.VoiceJob, error) {
	if limit <= 0 {
		limit = 50
	}

	results, err := surrealdb.Query[[]models.VoiceJob](ctx, c.db, `
		SELECT * FROM voice_job ORDER BY created DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.VoiceJob{}, nil
	}
	return (*results)[0].Result, nil
}

// ListStaleProcessing returns jobs stuck in processing whose last update
// is older than cutoff. Used by the sweeper.
func (c *Client) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.VoiceJob, error) {
	results, err := surrealdb.Query[[]models.VoiceJob](ctx, c.db, `
		SELECT * FROM voice_job WHERE status = 'processing' AND updated < $cutoff
	`, map[string]any{"cutoff": cutoff.UTC()})
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.VoiceJob{}, nil
	}
	return (*results)[0].Result, nil
}
