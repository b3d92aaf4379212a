package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/notify"
)

// action is the planned transition of one (slide, tag) pair.
type action int

const (
	actRun action = iota
	actSkip
	actAlready
	actBlocked
)

// unit produces one tag for one slide. gate decides from the manifest view
// whether the work is needed; run does it and returns the artifact key, or
// skip when the slide turns out to have nothing to process.
type unit struct {
	tag  manifest.Tag
	gate func(s *manifest.Slide) action
	run  func(ctx context.Context, s *manifest.Slide) (key string, skip bool, err error)
}

// slideStage describes the per-slide part of a stage.
type slideStage struct {
	stage   Stage
	workers int
	units   []unit
	// capability is preflighted when at least one slide needs a run; nil
	// means the stage has no external backend.
	capability any
	needsCap   bool
}

type slideJob struct {
	slide   manifest.Slide
	actions []action
}

type slideResult struct {
	index    int
	entries  map[manifest.Tag]manifest.Entry
	outcome  Outcome
	errs     []error
	duration time.Duration
}

// after is the usual gate: the tag is produced from prereq once prereq is
// done, and is not applicable when prereq was skipped.
func (p *Pipeline) after(prereq, tag manifest.Tag) func(*manifest.Slide) action {
	return func(s *manifest.Slide) action {
		if p.current(s, tag) {
			return actAlready
		}
		pre := s.Entry(prereq)
		switch pre.Status {
		case manifest.StatusDone:
			// A skip stands until the input it was decided on changes.
			if e := s.Entry(tag); e.Status == manifest.StatusSkipped && !pre.UpdatedAt.After(e.UpdatedAt) {
				return actSkip
			}
			return actRun
		case manifest.StatusSkipped:
			return actSkip
		}
		return actBlocked
	}
}

// slides plans, dispatches and records the per-slide work of a stage.
func (p *Pipeline) slides(ctx context.Context, res *StageResult, st slideStage) error {
	doc := p.manifest.View()
	if !doc.Extracted {
		return stageErr(st.stage, ErrNotExtracted)
	}
	if err := p.matchLanguages(doc); err != nil {
		return stageErr(st.stage, err)
	}
	res.Slides = len(doc.Slides)

	var jobs []slideJob
	var idle []slideResult
	for _, s := range doc.Slides {
		job := slideJob{slide: s, actions: make([]action, len(st.units))}
		runs := false
		for i, u := range st.units {
			job.actions[i] = u.gate(&s)
			runs = runs || job.actions[i] == actRun
		}
		if runs {
			jobs = append(jobs, job)
			continue
		}
		idle = append(idle, p.settle(job, st))
	}

	if len(jobs) > 0 && st.needsCap {
		if err := p.preflight(ctx, st.stage, st.capability); err != nil {
			return err
		}
	}

	for _, r := range idle {
		p.record(ctx, res, st.stage, r)
	}
	fanOut(ctx, st.workers, jobs, func(ctx context.Context, job slideJob) slideResult {
		return p.process(ctx, st, job)
	}, func(r slideResult) {
		p.record(ctx, res, st.stage, r)
	})
	return nil
}

// settle resolves a slide that needs no work.
func (p *Pipeline) settle(job slideJob, st slideStage) slideResult {
	r := slideResult{index: job.slide.Index, entries: map[manifest.Tag]manifest.Entry{}}
	var outcomes []Outcome
	for i, u := range st.units {
		switch job.actions[i] {
		case actAlready:
			outcomes = append(outcomes, OutcomeAlreadyDone)
		case actBlocked:
			outcomes = append(outcomes, OutcomeBlocked)
		case actSkip:
			outcomes = append(outcomes, OutcomeSkipped)
			if job.slide.Entry(u.tag).Status != manifest.StatusSkipped {
				r.entries[u.tag] = manifest.Entry{Status: manifest.StatusSkipped, UpdatedAt: p.now()}
			}
		}
	}
	r.outcome = combine(outcomes)
	return r
}

// process runs on a worker. It never touches the manifest.
func (p *Pipeline) process(ctx context.Context, st slideStage, job slideJob) slideResult {
	start := time.Now()
	r := p.settle(job, st)
	s := job.slide
	outcomes := []Outcome{r.outcome}
	for i, u := range st.units {
		if job.actions[i] != actRun {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		key, skip, err := u.run(ctx, &s)
		switch {
		case err != nil && ctx.Err() != nil:
			// Interrupted work leaves the entry as it was.
			p.log.Debug().Err(err).Int("slide", s.Index).Str("tag", string(u.tag)).Msg("cancelled")
		case err != nil:
			r.entries[u.tag] = manifest.Entry{Status: manifest.StatusFailed, Error: err.Error(), UpdatedAt: p.now()}
			r.errs = append(r.errs, fmt.Errorf("%s: %w", u.tag, err))
			outcomes = append(outcomes, OutcomeFailed)
		case skip:
			r.entries[u.tag] = manifest.Entry{Status: manifest.StatusSkipped, UpdatedAt: p.now()}
			outcomes = append(outcomes, OutcomeSkipped)
		default:
			r.entries[u.tag] = manifest.Entry{Status: manifest.StatusDone, Path: key, UpdatedAt: p.now()}
			outcomes = append(outcomes, OutcomeSucceeded)
		}
	}
	r.outcome = combine(outcomes)
	r.duration = time.Since(start)
	return r
}

var outcomeRank = map[Outcome]int{
	OutcomeFailed:      5,
	OutcomeSucceeded:   4,
	OutcomeAlreadyDone: 3,
	OutcomeBlocked:     2,
	OutcomeSkipped:     1,
}

// combine picks the slide outcome from its units' outcomes.
func combine(outcomes []Outcome) Outcome {
	var best Outcome
	for _, o := range outcomes {
		if outcomeRank[o] > outcomeRank[best] {
			best = o
		}
	}
	return best
}

// record applies one slide result to the manifest. Called only from the
// stage goroutine.
func (p *Pipeline) record(ctx context.Context, res *StageResult, stage Stage, r slideResult) {
	if len(r.entries) > 0 {
		err := p.manifest.Update(context.WithoutCancel(ctx), func(d *manifest.Document) error {
			s := d.Slide(r.index)
			if s == nil {
				return fmt.Errorf("slide %d not in manifest", r.index)
			}
			for tag, e := range r.entries {
				s.Set(tag, e)
			}
			return nil
		})
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("record: %w", err))
			r.outcome = OutcomeFailed
		}
	}
	if r.outcome == "" {
		return
	}
	res.add(r.outcome)
	for _, err := range r.errs {
		res.Errors = append(res.Errors, &StageError{Stage: stage, Slide: r.index, Err: err})
	}

	log := p.log.With().Str("stage", stage.String()).Int("slide", r.index+1).Logger()
	ev := notify.Event{
		Kind:    notify.KindSlide,
		Project: p.name,
		Stage:   stage.String(),
		Slide:   r.index,
		Status:  string(r.outcome),
	}
	if len(r.errs) > 0 {
		err := errors.Join(r.errs...)
		ev.Error = err.Error()
		log.Warn().Err(err).Msg("slide failed")
	} else if r.outcome == OutcomeSucceeded {
		log.Debug().Dur("duration", r.duration).Msg("slide done")
	}
	p.metrics.Slide(stage.String(), string(r.outcome), r.duration)
	if r.outcome != OutcomeAlreadyDone && r.outcome != OutcomeBlocked {
		p.notifier.Publish(context.WithoutCancel(ctx), ev)
	}
}
