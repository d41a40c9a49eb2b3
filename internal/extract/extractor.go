// Package extract implements the semantic extraction stage: it turns a
// transcript into a structured candidate event via an instructed LLM
// call behind a strict parsing and validation boundary.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicecal/voicecal-go/internal/llm"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
	"github.com/voicecal/voicecal-go/internal/pipeline"
)

// TextGenerator is the LLM capability the extractor depends on.
type TextGenerator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, llm.Usage, error)
}

// LLMExtractor extracts candidate events using a chat model.
type LLMExtractor struct {
	model   TextGenerator
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewLLMExtractor creates the LLM-backed extractor. The collector may
// be nil; token usage then goes unrecorded.
func NewLLMExtractor(model TextGenerator, collector *metrics.Collector, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{model: model, metrics: collector, logger: logger}
}

// Extract runs the model and parses its response into a candidate event.
// Any deviation from the expected structured output is an
// ExtractionFailure; the model's answer is never accepted best-effort.
func (e *LLMExtractor) Extract(ctx context.Context, in pipeline.Input) (models.CandidateEvent, error) {
	start := time.Now()
	raw, usage, err := e.model.GenerateWithSystem(ctx, systemPrompt, buildPrompt(in))
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.CandidateEvent{}, pipeline.NewStageError(pipeline.StageExtraction, pipeline.FailureTimeout, err)
		}
		if errors.Is(err, llm.ErrFatalAPI) {
			e.logger.Error("extraction model unavailable", "error", err)
		}
		return models.CandidateEvent{}, pipeline.NewStageError(pipeline.StageExtraction, pipeline.FailureExtraction, err)
	}

	if e.metrics != nil {
		e.metrics.RecordTokens(pipeline.StageExtraction, usage.InputTokens, usage.OutputTokens)
	}

	e.logger.Debug("extraction model responded",
		"duration_ms", duration.Milliseconds(), "chars", len(raw),
		"input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)

	event, err := ParseResponse(raw, in)
	if err != nil {
		return models.CandidateEvent{}, pipeline.NewStageError(pipeline.StageExtraction, pipeline.FailureExtraction, err)
	}
	return event, nil
}
