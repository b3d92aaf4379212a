package pipeline

import (
	"errors"
	"fmt"

	"github.com/openeduvoice/slidevoice/internal/pptx"
)

var (
	// ErrInvalidPackage means the source is not a readable presentation.
	// It aborts the project before any stage runs.
	ErrInvalidPackage = pptx.ErrInvalidPackage

	// ErrCapabilityUnavailable means a stage's backend (converter, speech
	// recognizer, translator, synthesizer) is missing or unreachable. The
	// stage is aborted before any slide is processed.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrSourceChanged means the source package no longer matches the
	// slides recorded at extraction.
	ErrSourceChanged = errors.New("source package changed since extraction")

	// ErrLanguageChanged means the project was opened with a language pair
	// other than the one its artifacts were produced for.
	ErrLanguageChanged = errors.New("project language pair changed")

	// ErrNotExtracted means a stage ran before Extract.
	ErrNotExtracted = errors.New("project has not been extracted")
)

// StageError attaches the stage and, when known, the slide to an error.
// Slide is the 0-based index, or -1 for stage-level errors.
type StageError struct {
	Stage Stage
	Slide int
	Err   error
}

func (e *StageError) Error() string {
	if e.Slide < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: slide %d: %v", e.Stage, e.Slide+1, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Slide: -1, Err: err}
}

func unavailable(stage Stage, err error) *StageError {
	return stageErr(stage, fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err))
}
