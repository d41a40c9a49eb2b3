// Package pipeline drives a voice processing job through its stages and
// owns the job state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a job failed. The kind is persisted on the
// job record and is the only externally observable failure signal.
type FailureKind string

const (
	FailureTranscription FailureKind = "TranscriptionFailure"
	FailureTimeout       FailureKind = "TimeoutFailure"
	FailureExtraction    FailureKind = "ExtractionFailure"
	FailureValidation    FailureKind = "ValidationFailure"
	FailureStorage       FailureKind = "StorageFailure"
)

// Stage names used in errors and logs.
const (
	StageTranscription   = "transcription"
	StageExtraction      = "extraction"
	StageEnhancement     = "enhancement"
	StageValidation      = "validation"
	StageMaterialization = "materialization"
)

// StageError is a classified failure from one pipeline stage.
type StageError struct {
	Stage string
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a classified stage failure.
func NewStageError(stage string, kind FailureKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Classify maps an arbitrary stage error onto the failure taxonomy.
// Already-classified errors keep their kind; deadline overruns become
// TimeoutFailure; anything else gets the stage's fallback kind.
func Classify(stage string, fallback FailureKind, err error) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewStageError(stage, FailureTimeout, err)
	}
	return NewStageError(stage, fallback, err)
}
