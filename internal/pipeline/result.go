package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Outcome is what happened to one slide in one stage invocation.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeAlreadyDone Outcome = "already_done"
	// OutcomeBlocked marks a slide whose prerequisite artifact is still
	// pending or failed.
	OutcomeBlocked Outcome = "blocked"
)

// StageResult summarizes one stage invocation. Partial success is a normal
// result: slide failures are listed in Errors and never returned as the
// stage error.
type StageResult struct {
	Stage       Stage
	RunID       string
	Slides      int
	Succeeded   int
	Failed      int
	Skipped     int
	AlreadyDone int
	Blocked     int
	Cancelled   bool
	Errors      []*StageError
	Warnings    []string
	Duration    time.Duration
}

func (r *StageResult) add(o Outcome) {
	switch o {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeAlreadyDone:
		r.AlreadyDone++
	case OutcomeBlocked:
		r.Blocked++
	}
}

func (r *StageResult) sortErrors() {
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Slide < r.Errors[j].Slide })
}

// Headline is the one-line progress message for the stage.
func (r *StageResult) Headline() string {
	n := r.Succeeded + r.AlreadyDone
	switch r.Stage {
	case StageExtract:
		return fmt.Sprintf("Extracted %d audio files from %d slides", n, r.Slides)
	case StageConvert:
		return fmt.Sprintf("Converted %d audio files to WAV", n)
	case StageTranscribe:
		return fmt.Sprintf("Transcribed %d slides", n)
	case StageTranslate:
		return fmt.Sprintf("Translated %d slides", n)
	case StageSynthesize:
		return fmt.Sprintf("Generated %d TTS audio files", n)
	case StageReintegrate:
		return fmt.Sprintf("Reintegrated %d slides into the combined package", n)
	}
	return r.Stage.String()
}

// Summary is the counts line, e.g.
// "convert: 3 succeeded, 1 failed, 2 skipped, 0 already done".
func (r *StageResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d succeeded, %d failed, %d skipped, %d already done",
		r.Stage, r.Succeeded, r.Failed, r.Skipped, r.AlreadyDone)
	if r.Blocked > 0 {
		fmt.Fprintf(&b, ", %d waiting on earlier stages", r.Blocked)
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}

func (r *StageResult) result() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}
