package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/pptx"
	"github.com/openeduvoice/slidevoice/internal/storage"
	"github.com/openeduvoice/slidevoice/internal/translate"
)

// Extract reads the slide order, narration references and text runs of the
// source package, records them in the manifest, and copies each slide's
// audio verbatim into media/.
func (p *Pipeline) Extract(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageExtract, func(ctx context.Context, res *StageResult) error {
		doc, err := pptx.Open(p.source)
		if err != nil {
			return err
		}
		defer doc.Close()

		if err := p.recordSlides(ctx, doc); err != nil {
			return err
		}

		extract := unit{
			tag: manifest.TagRawAudio,
			gate: func(s *manifest.Slide) action {
				if p.current(s, manifest.TagRawAudio) {
					return actAlready
				}
				ds := doc.Slides[s.Index]
				if ds.Err == nil && ds.Audio == nil {
					return actSkip
				}
				return actRun
			},
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				ds := doc.Slides[s.Index]
				if ds.Err != nil {
					return "", false, ds.Err
				}
				rc, err := doc.OpenPart(ds.Audio.Part)
				if err != nil {
					return "", false, err
				}
				defer rc.Close()
				key := manifest.Key(manifest.TagRawAudio, s.Index, ds.Audio.Ext)
				if err := p.local.SaveFrom(ctx, key, rc); err != nil {
					return "", false, fmt.Errorf("copy %s: %w", ds.Audio.Part, err)
				}
				return key, false, nil
			},
		}
		return p.slides(ctx, res, slideStage{stage: StageExtract, workers: p.ioWorkers, units: []unit{extract}})
	})
}

// recordSlides writes the slide records on first extraction and verifies
// them on later ones. Slide indices are never reassigned.
func (p *Pipeline) recordSlides(ctx context.Context, doc *pptx.Document) error {
	return p.manifest.Update(ctx, func(d *manifest.Document) error {
		if d.Extracted {
			if err := p.matchLanguages(d); err != nil {
				return err
			}
			return matchSlides(d, doc)
		}
		d.Project = manifest.Project{
			Source:     p.source,
			Name:       p.name,
			SourceLang: p.srcLang,
			TargetLang: p.tgtLang,
			CreatedAt:  p.now(),
		}
		d.Slides = make([]manifest.Slide, len(doc.Slides))
		for i, s := range doc.Slides {
			d.Slides[i] = manifest.Slide{Index: i, Part: s.Part, Audio: s.Audio, Runs: s.Runs}
		}
		d.Extracted = true
		return nil
	})
}

// matchLanguages rejects a language pair that differs from the one recorded
// at extraction. Translations and narration on disk belong to that pair.
func (p *Pipeline) matchLanguages(d *manifest.Document) error {
	h := d.Project
	if h.SourceLang == "" && h.TargetLang == "" {
		return nil
	}
	if translate.Code(h.SourceLang) == translate.Code(p.srcLang) && translate.Code(h.TargetLang) == translate.Code(p.tgtLang) {
		return nil
	}
	return fmt.Errorf("%w: project is %s to %s, requested %s to %s; use a new output directory",
		ErrLanguageChanged, h.SourceLang, h.TargetLang, p.srcLang, p.tgtLang)
}

// Convert normalizes every extracted audio file to a mono 16 kHz WAV.
func (p *Pipeline) Convert(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageConvert, func(ctx context.Context, res *StageResult) error {
		conv := p.caps.Converter
		u := unit{
			tag:  manifest.TagConvertedWAV,
			gate: p.after(manifest.TagRawAudio, manifest.TagConvertedWAV),
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				key := manifest.Key(manifest.TagConvertedWAV, s.Index, ".wav")
				tmp, err := p.local.CreateTemp(key)
				if err != nil {
					return "", false, err
				}
				p.metrics.CapabilityCall(StageConvert.String(), conv.Name())
				if err := conv.Convert(ctx, p.local.Path(s.Entry(manifest.TagRawAudio).Path), tmp); err != nil {
					os.Remove(tmp)
					return "", false, err
				}
				if err := p.local.Commit(tmp, key); err != nil {
					return "", false, err
				}
				return key, false, nil
			},
		}
		return p.slides(ctx, res, slideStage{
			stage:      StageConvert,
			workers:    p.ioWorkers,
			units:      []unit{u},
			capability: conv,
			needsCap:   true,
		})
	})
}

// Transcribe runs speech recognition on every converted WAV.
func (p *Pipeline) Transcribe(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageTranscribe, func(ctx context.Context, res *StageResult) error {
		prov := p.caps.Transcriber
		u := unit{
			tag:  manifest.TagTranscript,
			gate: p.after(manifest.TagConvertedWAV, manifest.TagTranscript),
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				p.metrics.CapabilityCall(StageTranscribe.String(), prov.Name())
				resp, err := prov.Transcribe(ctx, p.local.Path(s.Entry(manifest.TagConvertedWAV).Path), p.sttOpts)
				if err != nil {
					return "", false, err
				}
				t := manifest.Transcript{
					Slide:    s.Index,
					Language: resp.Language,
					Provider: prov.Name(),
					Model:    prov.Model(),
					Duration: resp.Duration,
					Text:     resp.Text,
					Segments: make([]manifest.Segment, len(resp.Segments)),
				}
				for i, seg := range resp.Segments {
					t.Segments[i] = manifest.Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
				}
				key := manifest.Key(manifest.TagTranscript, s.Index, ".json")
				if err := manifest.WriteJSON(ctx, p.local, key, t); err != nil {
					return "", false, err
				}
				return key, false, nil
			},
		}
		return p.slides(ctx, res, slideStage{
			stage:      StageTranscribe,
			workers:    p.modelWorkers,
			units:      []unit{u},
			capability: prov,
			needsCap:   true,
		})
	})
}

// Translate translates each slide's narration transcript and, independently,
// its visible text runs.
func (p *Pipeline) Translate(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageTranslate, func(ctx context.Context, res *StageResult) error {
		tr := p.caps.Translator
		narration := unit{
			tag:  manifest.TagTranslation,
			gate: p.after(manifest.TagTranscript, manifest.TagTranslation),
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				var t manifest.Transcript
				if err := manifest.ReadJSON(ctx, p.local, s.Entry(manifest.TagTranscript).Path, &t); err != nil {
					return "", false, err
				}
				if strings.TrimSpace(t.Text) == "" {
					return "", true, nil
				}
				p.metrics.CapabilityCall(StageTranslate.String(), tr.Name())
				out, err := tr.Translate(ctx, t.Text, p.srcLang, p.tgtLang)
				if err != nil {
					return "", false, err
				}
				key := manifest.Key(manifest.TagTranslation, s.Index, ".json")
				rec := manifest.Translation{
					Slide:      s.Index,
					SourceLang: p.srcLang,
					TargetLang: p.tgtLang,
					Source:     t.Text,
					Target:     out,
				}
				if err := manifest.WriteJSON(ctx, p.local, key, rec); err != nil {
					return "", false, err
				}
				return key, false, nil
			},
		}
		slideText := unit{
			tag: manifest.TagSlideText,
			gate: func(s *manifest.Slide) action {
				if p.current(s, manifest.TagSlideText) {
					return actAlready
				}
				if len(s.Runs) == 0 {
					return actSkip
				}
				return actRun
			},
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				rec := manifest.SlideText{
					Slide:      s.Index,
					SourceLang: p.srcLang,
					TargetLang: p.tgtLang,
					Runs:       make([]manifest.RunTranslation, len(s.Runs)),
				}
				for i, r := range s.Runs {
					if strings.TrimSpace(r.Text) == "" {
						rec.Runs[i] = manifest.RunTranslation{ID: r.ID, Source: r.Text, Target: r.Text}
						continue
					}
					p.metrics.CapabilityCall(StageTranslate.String(), tr.Name())
					out, err := tr.Translate(ctx, r.Text, p.srcLang, p.tgtLang)
					if err != nil {
						return "", false, fmt.Errorf("run %s: %w", r.ID, err)
					}
					rec.Runs[i] = manifest.RunTranslation{ID: r.ID, Source: r.Text, Target: out}
				}
				key := manifest.Key(manifest.TagSlideText, s.Index, ".json")
				if err := manifest.WriteJSON(ctx, p.local, key, rec); err != nil {
					return "", false, err
				}
				return key, false, nil
			},
		}
		return p.slides(ctx, res, slideStage{
			stage:      StageTranslate,
			workers:    p.modelWorkers,
			units:      []unit{narration, slideText},
			capability: tr,
			needsCap:   true,
		})
	})
}

// Synthesize speaks every non-empty narration translation with the voice
// configured for the target language.
func (p *Pipeline) Synthesize(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageSynthesize, func(ctx context.Context, res *StageResult) error {
		syn := p.caps.Synthesizer
		voice, ok := p.caps.Voices.For(translate.Code(p.tgtLang))
		if !ok {
			p.log.Debug().Str("lang", p.tgtLang).Msg("no voice configured, using backend default")
		}
		u := unit{
			tag:  manifest.TagTTSAudio,
			gate: p.after(manifest.TagTranslation, manifest.TagTTSAudio),
			run: func(ctx context.Context, s *manifest.Slide) (string, bool, error) {
				var t manifest.Translation
				if err := manifest.ReadJSON(ctx, p.local, s.Entry(manifest.TagTranslation).Path, &t); err != nil {
					return "", false, err
				}
				if strings.TrimSpace(t.Target) == "" {
					return "", true, nil
				}
				p.metrics.CapabilityCall(StageSynthesize.String(), syn.Name())
				audio, err := syn.Synthesize(ctx, t.Target, translate.Code(p.tgtLang), voice)
				if err != nil {
					return "", false, err
				}
				if len(audio) == 0 {
					return "", false, errors.New("synthesizer returned no audio")
				}
				key := manifest.Key(manifest.TagTTSAudio, s.Index, syn.Ext())
				if err := p.local.Save(ctx, key, audio, storage.ContentTypeFromExt(syn.Ext())); err != nil {
					return "", false, err
				}
				return key, false, nil
			},
		}
		return p.slides(ctx, res, slideStage{
			stage:      StageSynthesize,
			workers:    p.modelWorkers,
			units:      []unit{u},
			capability: syn,
			needsCap:   true,
		})
	})
}

func matchSlides(d *manifest.Document, src *pptx.Document) error {
	if len(src.Slides) != len(d.Slides) {
		return fmt.Errorf("%w: %d slides recorded, %d in package", ErrSourceChanged, len(d.Slides), len(src.Slides))
	}
	for i, s := range src.Slides {
		if d.Slides[i].Part != s.Part {
			return fmt.Errorf("%w: slide %d is %s, was %s", ErrSourceChanged, i+1, s.Part, d.Slides[i].Part)
		}
	}
	return nil
}
