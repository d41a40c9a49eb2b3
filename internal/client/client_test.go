package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicecal/voicecal-go/internal/models"
)

func TestCreateJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/jobs", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var in CreateJobInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "https://cdn.example.com/memo.m4a", in.AudioURL)
		assert.Equal(t, "user1", in.UserID)
		require.Len(t, in.Labels, 1)
		assert.Equal(t, "lbl_work", in.Labels[0].ID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":        "j1",
			"status":    "pending",
			"audio_url": in.AudioURL,
			"user_id":   in.UserID,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	job, err := c.CreateJob(context.Background(), CreateJobInput{
		AudioURL: "https://cdn.example.com/memo.m4a",
		UserID:   "user1",
		Labels:   []models.LabelCandidate{{ID: "lbl_work", Name: "Work"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestGetJobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestProcessJobTerminalRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/jobs/j1/process", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "j1",
			"status":       "failed",
			"failure_kind": "TranscriptionFailure",
		})
	}))
	defer srv.Close()

	job, err := New(srv.URL).ProcessJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, "TranscriptionFailure", *job.FailureKind)
}

func TestListJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jobs": []map[string]any{
				{"id": "j1", "status": "completed"},
				{"id": "j2", "status": "pending"},
			},
		})
	}))
	defer srv.Close()

	jobs, err := New(srv.URL).ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].ID)
}

func TestDefaultBaseURL(t *testing.T) {
	t.Setenv("VOICECAL_SERVER_URL", "")
	c := New("")
	assert.Equal(t, "http://localhost:8383", c.baseURL)

	t.Setenv("VOICECAL_SERVER_URL", "http://worker:9000")
	c = New("")
	assert.Equal(t, "http://worker:9000", c.baseURL)
}
