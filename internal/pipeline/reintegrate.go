package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/pptx"
)

// Reintegrate writes {name}_combined.pptx: the source package with every
// translated text run and synthesized narration patched in. Slides with
// neither are copied through unchanged.
func (p *Pipeline) Reintegrate(ctx context.Context) (*StageResult, error) {
	return p.run(ctx, StageReintegrate, p.reintegrate)
}

func (p *Pipeline) reintegrate(ctx context.Context, res *StageResult) error {
	doc := p.manifest.View()
	if !doc.Extracted {
		return stageErr(StageReintegrate, ErrNotExtracted)
	}
	if err := p.matchLanguages(doc); err != nil {
		return stageErr(StageReintegrate, err)
	}
	res.Slides = len(doc.Slides)
	if err := p.verifySource(doc); err != nil {
		return err
	}

	var (
		patches []pptx.Patch
		patched = map[int]bool{}
		failed  = map[int]bool{}
		latest  time.Time
	)
	for i := range doc.Slides {
		s := &doc.Slides[i]
		patch := pptx.Patch{Slide: s.Index}
		if p.current(s, manifest.TagSlideText) {
			e := s.Entry(manifest.TagSlideText)
			var st manifest.SlideText
			if err := manifest.ReadJSON(ctx, p.local, e.Path, &st); err != nil {
				res.Errors = append(res.Errors, &StageError{Stage: StageReintegrate, Slide: s.Index, Err: err})
				failed[s.Index] = true
			} else {
				patch.Texts = st.Texts()
				latest = later(latest, e.UpdatedAt)
			}
		}
		if p.current(s, manifest.TagTTSAudio) {
			e := s.Entry(manifest.TagTTSAudio)
			patch.Audio = &pptx.AudioPatch{File: p.local.Path(e.Path)}
			if s.Audio != nil {
				patch.Audio.RelIDs = s.Audio.RelIDs
			}
			latest = later(latest, e.UpdatedAt)
		}
		if len(patch.Texts) > 0 || patch.Audio != nil {
			patches = append(patches, patch)
			patched[s.Index] = true
		}
	}

	key := manifest.CombinedKey(p.name)
	if c := doc.Combined; c != nil && c.Status == manifest.StatusDone && p.local.Valid(c.Path) &&
		!latest.After(c.UpdatedAt) && len(failed) == 0 && len(c.FailedSlides) == 0 {
		for i := range doc.Slides {
			if patched[i] {
				p.tally(res, OutcomeAlreadyDone)
			} else {
				p.tally(res, OutcomeSkipped)
			}
		}
		return nil
	}

	start := time.Now()
	result, err := p.writeCombined(ctx, key, patches)
	if err != nil {
		if ctx.Err() == nil {
			p.setCombined(ctx, manifest.Entry{Status: manifest.StatusFailed, Error: err.Error(), UpdatedAt: p.now()})
		}
		return err
	}
	p.log.Debug().Dur("duration", time.Since(start)).Int("patches", len(patches)).Msg("combined package written")

	for _, i := range result.MissingAudio {
		res.Errors = append(res.Errors, &StageError{
			Stage: StageReintegrate,
			Slide: i,
			Err:   errors.New("slide has no audio relationship to replace"),
		})
		failed[i] = true
	}
	for _, i := range result.Fallbacks {
		res.Warnings = append(res.Warnings, fmt.Sprintf("slide %d: recorded audio relationship IDs not found, matched by position", i+1))
	}
	for i := range doc.Slides {
		if ids := result.MissingRuns[i]; len(ids) > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("slide %d: text runs %s not found", i+1, strings.Join(ids, ", ")))
		}
	}

	for i := range doc.Slides {
		switch {
		case failed[i]:
			p.tally(res, OutcomeFailed)
		case patched[i]:
			p.tally(res, OutcomeSucceeded)
		default:
			p.tally(res, OutcomeSkipped)
		}
	}

	p.setCombined(ctx, manifest.Entry{
		Status:       manifest.StatusDone,
		Path:         key,
		UpdatedAt:    p.now(),
		FailedSlides: result.MissingAudio,
	})
	p.mirror(ctx, key, p.log)
	return nil
}

func (p *Pipeline) writeCombined(ctx context.Context, key string, patches []pptx.Patch) (*pptx.Result, error) {
	tmp, err := p.local.CreateTemp(key)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("open temp: %w", err)
	}
	result, err := pptx.Reintegrate(ctx, p.source, f, p.name, patches)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close: %w", cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := p.local.Commit(tmp, key); err != nil {
		return nil, err
	}
	return result, nil
}

// verifySource checks that the package still has the slides recorded at
// extraction.
func (p *Pipeline) verifySource(doc *manifest.Document) error {
	src, err := pptx.Open(p.source)
	if err != nil {
		return err
	}
	defer src.Close()
	return matchSlides(doc, src)
}

func (p *Pipeline) setCombined(ctx context.Context, e manifest.Entry) {
	err := p.manifest.Update(context.WithoutCancel(ctx), func(d *manifest.Document) error {
		d.Combined = &e
		return nil
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to record combined package")
	}
}

// tally counts a project-level stage's outcome for one slide.
func (p *Pipeline) tally(res *StageResult, o Outcome) {
	res.add(o)
	p.metrics.Slide(res.Stage.String(), string(o), 0)
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
