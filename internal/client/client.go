// Package client provides an HTTP client for the voicecal trigger server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/voicecal/voicecal-go/internal/models"
)

// requestIDHeader correlates client calls with server logs.
const requestIDHeader = "X-Request-Id"

// Client talks to a running voicecal trigger server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new trigger server client.
// If baseURL is empty, uses VOICECAL_SERVER_URL env var or defaults to localhost:8383.
// Timeout can be configured via VOICECAL_CLIENT_TIMEOUT env var (default 2m).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("VOICECAL_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8383"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("VOICECAL_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Job is the trigger server's view of a job record.
type Job struct {
	ID           string                  `json:"id"`
	AudioURL     string                  `json:"audio_url"`
	UserID       string                  `json:"user_id"`
	CalendarID   *string                 `json:"calendar_id,omitempty"`
	Labels       []models.LabelCandidate `json:"labels,omitempty"`
	Status       models.JobStatus        `json:"status"`
	Transcript   *string                 `json:"transcript,omitempty"`
	Result       *models.CandidateEvent  `json:"result,omitempty"`
	ErrorMessage *string                 `json:"error_message,omitempty"`
	FailureKind  *string                 `json:"failure_kind,omitempty"`
	EventID      *string                 `json:"event_id,omitempty"`
	Created      time.Time               `json:"created"`
	Updated      time.Time               `json:"updated"`
}

// CreateJobInput is the trigger payload.
type CreateJobInput struct {
	AudioURL   string                  `json:"audio_url"`
	UserID     string                  `json:"user_id"`
	CalendarID *string                 `json:"calendar_id,omitempty"`
	Labels     []models.LabelCandidate `json:"labels,omitempty"`
}

// errorResponse is the server's error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// CreateJob submits a new trigger and returns the accepted job record.
// Processing starts asynchronously on the server.
func (c *Client) CreateJob(ctx context.Context, in CreateJobInput) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", in, &job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

// GetJob fetches a job's current record.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+id, nil, &job); err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// ProcessJob synchronously runs an existing job and returns its terminal
// record. Safe to call on re-delivery.
func (c *Client) ProcessJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/jobs/"+id+"/process", nil, &job); err != nil {
		return nil, fmt.Errorf("process job: %w", err)
	}
	return &job, nil
}

// ListJobs returns recent jobs.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &resp); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return resp.Jobs, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, errResp.Error)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
