package pipeline

import "github.com/openeduvoice/slidevoice/internal/manifest"

// TagCounts counts the slides in each state for one artifact tag.
type TagCounts struct {
	Tag     manifest.Tag
	Pending int
	Done    int
	Failed  int
	Skipped int
}

// Status is a snapshot of project progress.
type Status struct {
	Project   manifest.Project
	Root      string
	Extracted bool
	Slides    int
	// State is the last stage, in order, that is done or skipped on every
	// slide. StageNone before extraction.
	State    Stage
	Tags     []TagCounts
	Combined *manifest.Entry
	Runs     []manifest.StageRun
}

// Status reads progress from the manifest. It never calls a backend.
func (p *Pipeline) Status() *Status {
	doc := p.manifest.View()
	st := &Status{
		Project:   doc.Project,
		Root:      p.local.Dir(),
		Extracted: doc.Extracted,
		Slides:    len(doc.Slides),
		Combined:  doc.Combined,
		Runs:      doc.Runs,
	}
	for _, tag := range manifest.Tags {
		c := TagCounts{Tag: tag}
		for i := range doc.Slides {
			switch doc.Slides[i].Entry(tag).Status {
			case manifest.StatusDone:
				c.Done++
			case manifest.StatusFailed:
				c.Failed++
			case manifest.StatusSkipped:
				c.Skipped++
			default:
				c.Pending++
			}
		}
		st.Tags = append(st.Tags, c)
	}
	st.State = state(doc)
	return st
}

// Counts returns the counts for tag.
func (s *Status) Counts(tag manifest.Tag) TagCounts {
	for _, c := range s.Tags {
		if c.Tag == tag {
			return c
		}
	}
	return TagCounts{Tag: tag}
}

func state(doc *manifest.Document) Stage {
	if !doc.Extracted {
		return StageNone
	}
	reached := StageNone
	for _, stage := range Stages {
		if stage == StageReintegrate {
			if doc.Combined != nil && doc.Combined.Status == manifest.StatusDone {
				reached = stage
			}
			break
		}
		if !settled(doc, stage) {
			break
		}
		reached = stage
	}
	return reached
}

// settled reports whether every slide has each of stage's tags done or
// skipped.
func settled(doc *manifest.Document, stage Stage) bool {
	for i := range doc.Slides {
		for _, tag := range stage.Tags() {
			switch doc.Slides[i].Entry(tag).Status {
			case manifest.StatusDone, manifest.StatusSkipped:
			default:
				return false
			}
		}
	}
	return true
}
