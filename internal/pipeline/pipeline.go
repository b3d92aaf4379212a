// Package pipeline runs the localization stages over a project and keeps
// the manifest as the single record of their progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/config"
	"github.com/openeduvoice/slidevoice/internal/convert"
	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/metrics"
	"github.com/openeduvoice/slidevoice/internal/notify"
	"github.com/openeduvoice/slidevoice/internal/storage"
	"github.com/openeduvoice/slidevoice/internal/synth"
	"github.com/openeduvoice/slidevoice/internal/transcribe"
)

// Translator is the translation capability. *translate.Adapter implements it.
type Translator interface {
	Translate(ctx context.Context, text, src, tgt string) (string, error)
	Name() string
}

// Capabilities are the external backends, built once per run and shared by
// all workers. A nil capability makes its stage unavailable.
type Capabilities struct {
	Converter   convert.Converter
	Transcriber transcribe.Provider
	Translator  Translator
	Synthesizer synth.Synthesizer
	Voices      config.VoiceMap
}

// Options configures a Pipeline.
type Options struct {
	// Source is the path of the .pptx package.
	Source string
	// Local is the project directory. Required.
	Local *storage.LocalStore
	// Store persists the manifest and receives mirrored outputs. Defaults
	// to Local.
	Store storage.Store
	// Manifest defaults to an in-memory manifest.
	Manifest manifest.Manifest

	Capabilities Capabilities
	// CapabilityErrors records why a backend could not be built; the
	// matching stage fails with ErrCapabilityUnavailable.
	CapabilityErrors map[Stage]error

	SourceLang string
	TargetLang string

	IOWorkers    int
	ModelWorkers int

	// STTOptions are passed to every transcription request.
	STTOptions transcribe.TranscribeOpts

	Metrics  *metrics.Recorder
	Notifier notify.Notifier
	Log      zerolog.Logger
	Now      func() time.Time
}

// Pipeline orchestrates the stages of one project. Stages run one at a time;
// slides within a stage run on a bounded worker pool.
type Pipeline struct {
	mu sync.Mutex

	source   string
	name     string
	store    storage.Store
	local    *storage.LocalStore
	manifest manifest.Manifest
	caps     Capabilities
	capErrs  map[Stage]error

	srcLang string
	tgtLang string

	ioWorkers    int
	modelWorkers int
	sttOpts      transcribe.TranscribeOpts

	metrics  *metrics.Recorder
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == "" {
		return nil, errors.New("pipeline: source is required")
	}
	if opts.Local == nil {
		return nil, errors.New("pipeline: local store is required")
	}
	p := &Pipeline{
		source:       opts.Source,
		name:         manifest.Name(opts.Source),
		store:        opts.Store,
		local:        opts.Local,
		manifest:     opts.Manifest,
		caps:         opts.Capabilities,
		capErrs:      opts.CapabilityErrors,
		srcLang:      opts.SourceLang,
		tgtLang:      opts.TargetLang,
		ioWorkers:    max(opts.IOWorkers, 1),
		modelWorkers: max(opts.ModelWorkers, 1),
		sttOpts:      opts.STTOptions,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		log:          opts.Log.With().Str("component", "pipeline").Logger(),
		now:          opts.Now,
	}
	if p.store == nil {
		p.store = opts.Local
	}
	if p.manifest == nil {
		p.manifest = manifest.NewMemory()
	}
	if p.notifier == nil {
		p.notifier = notify.Nop{}
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	if p.capErrs == nil {
		p.capErrs = map[Stage]error{}
	}
	if p.caps.Voices == nil {
		p.caps.Voices = config.DefaultVoices
	}
	return p, nil
}

// Name returns the project name.
func (p *Pipeline) Name() string { return p.name }

// Root returns the project directory.
func (p *Pipeline) Root() string { return p.local.Dir() }

// Manifest returns the pipeline's manifest.
func (p *Pipeline) Manifest() manifest.Manifest { return p.manifest }

// Close releases the notifier.
func (p *Pipeline) Close() {
	p.notifier.Close()
}

// RunStage runs one stage.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage) (*StageResult, error) {
	switch stage {
	case StageExtract:
		return p.Extract(ctx)
	case StageConvert:
		return p.Convert(ctx)
	case StageTranscribe:
		return p.Transcribe(ctx)
	case StageTranslate:
		return p.Translate(ctx)
	case StageSynthesize:
		return p.Synthesize(ctx)
	case StageReintegrate:
		return p.Reintegrate(ctx)
	}
	return nil, fmt.Errorf("unknown stage %v", stage)
}

// Run executes every stage in order. Slide failures do not stop the run;
// a stage- or project-level error or cancellation does.
func (p *Pipeline) Run(ctx context.Context) ([]*StageResult, error) {
	var results []*StageResult
	for _, stage := range Stages {
		res, err := p.RunStage(ctx, stage)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
		if res.Cancelled || ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

// run wraps a stage body with the bookkeeping every stage shares: run ID,
// history, metrics, mirroring and the stage notification.
func (p *Pipeline) run(ctx context.Context, stage Stage, body func(context.Context, *StageResult) error) (*StageResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &StageResult{Stage: stage, RunID: uuid.NewString()}
	log := p.log.With().Str("stage", stage.String()).Str("run_id", res.RunID).Logger()
	started := p.now()
	start := time.Now()
	log.Info().Msg("stage started")

	err := body(ctx, res)
	res.Duration = time.Since(start)
	if ctx.Err() != nil {
		res.Cancelled = true
	}
	res.sortErrors()

	if err != nil {
		var se *StageError
		if !errors.As(err, &se) && !errors.Is(err, ErrInvalidPackage) && !errors.Is(err, context.Canceled) {
			err = stageErr(stage, err)
		}
		p.metrics.Stage(stage.String(), "error", res.Duration)
		p.notifier.Publish(context.WithoutCancel(ctx), notify.Event{
			Kind:    notify.KindStage,
			Project: p.name,
			Stage:   stage.String(),
			Slide:   -1,
			Status:  "error",
			Error:   err.Error(),
		})
		log.Error().Err(err).Msg("stage failed")
		return res, err
	}

	rec := manifest.StageRun{
		ID:          res.RunID,
		Stage:       stage.String(),
		StartedAt:   started,
		FinishedAt:  p.now(),
		Succeeded:   res.Succeeded,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
		AlreadyDone: res.AlreadyDone,
		Cancelled:   res.Cancelled,
	}
	if err := p.manifest.Update(context.WithoutCancel(ctx), func(d *manifest.Document) error {
		d.Runs = append(d.Runs, rec)
		return nil
	}); err != nil {
		log.Warn().Err(err).Msg("failed to record stage run")
	}

	p.metrics.Stage(stage.String(), res.result(), res.Duration)
	p.writeMetrics(ctx, log)
	p.notifier.Publish(context.WithoutCancel(ctx), notify.Event{
		Kind:    notify.KindStage,
		Project: p.name,
		Stage:   stage.String(),
		Slide:   -1,
		Status:  res.result(),
		Counts: map[string]int{
			string(OutcomeSucceeded):   res.Succeeded,
			string(OutcomeFailed):      res.Failed,
			string(OutcomeSkipped):     res.Skipped,
			string(OutcomeAlreadyDone): res.AlreadyDone,
			string(OutcomeBlocked):     res.Blocked,
		},
	})

	ev := log.Info()
	if res.Failed > 0 || res.Cancelled {
		ev = log.Warn()
	}
	ev.Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Int("already_done", res.AlreadyDone).
		Int("blocked", res.Blocked).
		Bool("cancelled", res.Cancelled).
		Dur("duration", res.Duration).
		Msg(res.Headline())
	return res, nil
}

// preflight verifies a capability before any slide is handed to it.
func (p *Pipeline) preflight(ctx context.Context, stage Stage, capability any) error {
	if err := p.capErrs[stage]; err != nil {
		return unavailable(stage, err)
	}
	if capability == nil {
		return unavailable(stage, errors.New("no backend configured"))
	}
	if c, ok := capability.(interface{ Check(context.Context) error }); ok {
		if err := c.Check(ctx); err != nil {
			return unavailable(stage, err)
		}
	}
	return nil
}

// current reports whether tag is done for s and its file is still valid.
func (p *Pipeline) current(s *manifest.Slide, tag manifest.Tag) bool {
	e := s.Entry(tag)
	return e.Status == manifest.StatusDone && p.local.Valid(e.Path)
}

func (p *Pipeline) writeMetrics(ctx context.Context, log zerolog.Logger) {
	if p.metrics == nil {
		return
	}
	if err := os.MkdirAll(p.local.Dir(), 0o755); err != nil {
		log.Warn().Err(err).Msg("failed to create project dir for metrics")
		return
	}
	if err := p.metrics.WriteTextfile(p.local.Path(manifest.MetricsFileName)); err != nil {
		log.Warn().Err(err).Msg("failed to write metrics")
		return
	}
	p.mirror(ctx, manifest.MetricsFileName, log)
}

// mirror pushes a committed local file to the secondary store, if any.
func (p *Pipeline) mirror(ctx context.Context, key string, log zerolog.Logger) {
	m, ok := p.store.(storage.Mirrorer)
	if !ok {
		return
	}
	if err := m.Mirror(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("mirror failed")
	}
}
