// Package transcribe implements the speech-to-text stage against an
// external HTTP transcription service.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voicecal/voicecal-go/internal/config"
	"github.com/voicecal/voicecal-go/internal/pipeline"
)

// Client calls the external transcription service. It performs a size
// pre-flight against the audio reference before submitting, then makes
// a single submission per invocation. Retry policy belongs to the
// orchestrator boundary, not here.
type Client struct {
	baseURL       string
	language      string
	apiKey        string
	maxAudioBytes int64
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a transcription client from configuration.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.TranscribeURL, "/"),
		language:      cfg.TranscribeLanguage,
		apiKey:        cfg.TranscribeAPIKey,
		maxAudioBytes: cfg.MaxAudioBytes,
		httpClient:    &http.Client{},
		logger:        logger,
	}
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language"`
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe converts the referenced audio into plain text.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if c.baseURL == "" {
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			errors.New("TRANSCRIBE_URL not configured"))
	}

	if err := c.preflight(ctx, audioURL); err != nil {
		return "", err
	}

	start := time.Now()
	text, err := c.submit(ctx, audioURL)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("transcription failed",
			"audio_url", audioURL, "duration_ms", duration.Milliseconds(), "error", err)
		return "", err
	}

	c.logger.Debug("transcription complete",
		"audio_url", audioURL, "duration_ms", duration.Milliseconds(), "chars", len(text))
	return text, nil
}

// preflight rejects unreachable or oversized audio before any transfer
// is attempted.
func (c *Client) preflight(ctx context.Context, audioURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, audioURL, nil)
	if err != nil {
		return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("invalid audio reference: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(fmt.Errorf("audio unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("audio unreachable: status %d", resp.StatusCode))
	}

	if resp.ContentLength > 0 && resp.ContentLength > c.maxAudioBytes {
		return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("audio exceeds size limit: %d > %d bytes", resp.ContentLength, c.maxAudioBytes))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !supportedContentType(ct) {
		return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("unsupported audio format: %s", ct))
	}

	return nil
}

func supportedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return strings.HasPrefix(ct, "audio/") ||
		strings.HasPrefix(ct, "video/") ||
		ct == "application/octet-stream"
}

// submit posts exactly one transcription request. Failures, transient
// or not, fail the stage; the job-level trigger redelivery is the only
// retry mechanism.
func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcribeRequest{AudioURL: audioURL, Language: c.language})
	if err != nil {
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classify(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("server error %d: %s", resp.StatusCode, raw))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			fmt.Errorf("malformed response: %w", err))
	}

	if resp.StatusCode >= 400 || parsed.Error != nil {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = fmt.Sprintf("%s: %s", parsed.Error.Kind, parsed.Error.Message)
		}
		return "", pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription,
			errors.New(msg))
	}

	return parsed.Text, nil
}

// classify maps transport errors onto the failure taxonomy: deadline
// overruns are timeouts, everything else is a transcription failure.
// net/url errors wrap the context error, so errors.Is unwraps them.
func (c *Client) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTimeout, err)
	}
	return pipeline.NewStageError(pipeline.StageTranscription, pipeline.FailureTranscription, err)
}
