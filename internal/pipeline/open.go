package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
	"github.com/openeduvoice/slidevoice/internal/convert"
	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/metrics"
	"github.com/openeduvoice/slidevoice/internal/notify"
	"github.com/openeduvoice/slidevoice/internal/pptx"
	"github.com/openeduvoice/slidevoice/internal/storage"
	"github.com/openeduvoice/slidevoice/internal/synth"
	"github.com/openeduvoice/slidevoice/internal/transcribe"
	"github.com/openeduvoice/slidevoice/internal/translate"
)

// Open prepares the project for source using cfg: it validates the package,
// opens the project directory and manifest, and builds every backend. A
// backend that cannot be built only disables its own stage.
func Open(ctx context.Context, source string, cfg *config.Config, log zerolog.Logger) (*Pipeline, error) {
	doc, err := pptx.Open(source)
	if err != nil {
		return nil, err
	}
	doc.Close()

	name := manifest.Name(source)
	root := manifest.Root(source, cfg.OutputDir)
	store, local, err := storage.New(ctx, cfg.S3, root, name, log)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{"", manifest.Dir(manifest.TagRawAudio), manifest.Dir(manifest.TagConvertedWAV),
		manifest.Dir(manifest.TagTranscript), manifest.Dir(manifest.TagTranslation), manifest.Dir(manifest.TagTTSAudio)} {
		if n, err := local.CleanTemps(dir); err == nil && n > 0 {
			log.Info().Int("removed", n).Str("dir", dir).Msg("removed leftover temp files")
		}
	}

	mf, err := manifest.OpenFile(ctx, store, log)
	if err != nil {
		return nil, err
	}
	voices, err := config.LoadVoices(cfg.VoiceMapFile)
	if err != nil {
		return nil, err
	}

	runner := command.ExecRunner{}
	capErrs := map[Stage]error{}
	var caps Capabilities
	caps.Voices = voices
	if caps.Converter, err = convert.New(cfg, runner, log); err != nil {
		capErrs[StageConvert] = err
	}
	if caps.Transcriber, err = transcribe.New(cfg, runner, log); err != nil {
		capErrs[StageTranscribe] = err
	}
	if tr, err := translate.New(ctx, cfg, log); err != nil {
		capErrs[StageTranslate] = err
	} else {
		caps.Translator = tr
	}
	if caps.Synthesizer, err = synth.New(cfg, runner, log); err != nil {
		capErrs[StageSynthesize] = err
	}

	var rec *metrics.Recorder
	if cfg.MetricsTextfile {
		rec = metrics.NewRecorder(mf.View)
	}

	p, err := New(Options{
		Source:           source,
		Local:            local,
		Store:            store,
		Manifest:         mf,
		Capabilities:     caps,
		CapabilityErrors: capErrs,
		SourceLang:       cfg.SourceLang,
		TargetLang:       cfg.TargetLang,
		IOWorkers:        cfg.IOWorkers,
		ModelWorkers:     cfg.ModelWorkers,
		STTOptions: transcribe.TranscribeOpts{
			Language:  translate.Code(cfg.SourceLang),
			Prompt:    cfg.STTPrompt,
			Hotwords:  cfg.STTHotwords,
			BeamSize:  cfg.WhisperBeamSize,
			VadFilter: cfg.WhisperVAD,
		},
		Metrics:  rec,
		Notifier: notify.New(cfg, log),
		Log:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.log.Info().
		Str("project", name).
		Str("root", root).
		Str("store", store.Type()).
		Str("source_lang", cfg.SourceLang).
		Str("target_lang", cfg.TargetLang).
		Msg("project opened")
	return p, nil
}
