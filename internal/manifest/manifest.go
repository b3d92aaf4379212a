// Package manifest records which artifacts exist for each slide of a project
// and where they live.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openeduvoice/slidevoice/internal/pptx"
)

// Version is the schema version written to manifest.json.
const Version = 1

// Tag identifies the stage that produced an artifact.
type Tag string

const (
	TagRawAudio     Tag = "raw_audio"
	TagConvertedWAV Tag = "converted_wav"
	TagTranscript   Tag = "transcript"
	TagTranslation  Tag = "translation"
	TagSlideText    Tag = "slide_text"
	TagTTSAudio     Tag = "tts_audio"
)

// Tags lists every artifact tag in pipeline order.
var Tags = []Tag{TagRawAudio, TagConvertedWAV, TagTranscript, TagTranslation, TagSlideText, TagTTSAudio}

// Status is the state of one (slide, tag) pair.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusSkipped marks a slide the stage does not apply to, such as a
	// slide without narration.
	StatusSkipped Status = "skipped"
)

// Entry is the record of one artifact.
type Entry struct {
	Status    Status    `json:"status"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	// FailedSlides lists slides a project-level artifact was built without,
	// such as narration that found no audio relationship to replace.
	FailedSlides []int `json:"failed_slides,omitempty"`
}

// Slide is the manifest view of one slide.
type Slide struct {
	Index  int           `json:"index"`
	Part   string        `json:"part"`
	Audio  *pptx.Audio   `json:"audio,omitempty"`
	Runs   []pptx.Run    `json:"runs,omitempty"`
	Stages map[Tag]Entry `json:"stages,omitempty"`
}

// Entry returns the entry for tag; a missing entry is pending.
func (s *Slide) Entry(tag Tag) Entry {
	e, ok := s.Stages[tag]
	if !ok || e.Status == "" {
		return Entry{Status: StatusPending}
	}
	return e
}

// Set records the entry for tag.
func (s *Slide) Set(tag Tag, e Entry) {
	if s.Stages == nil {
		s.Stages = make(map[Tag]Entry)
	}
	s.Stages[tag] = e
}

// Project is the header of a manifest.
type Project struct {
	Source     string    `json:"source"`
	Name       string    `json:"name"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	CreatedAt  time.Time `json:"created_at"`
}

// StageRun is the history record of one stage invocation.
type StageRun struct {
	ID          string    `json:"id"`
	Stage       string    `json:"stage"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	AlreadyDone int       `json:"already_done"`
	Cancelled   bool      `json:"cancelled,omitempty"`
}

// Document is the full manifest.
type Document struct {
	Version   int        `json:"version"`
	Project   Project    `json:"project"`
	Extracted bool       `json:"extracted"` // set even when the deck has no slides
	Slides    []Slide    `json:"slides"`
	Combined  *Entry     `json:"combined,omitempty"`
	Runs      []StageRun `json:"runs,omitempty"`
}

// Slide returns slide i, or nil when out of range.
func (d *Document) Slide(i int) *Slide {
	if i < 0 || i >= len(d.Slides) {
		return nil
	}
	return &d.Slides[i]
}

// Manifest is the single owner of the persisted project state. Update calls
// are serialized; each one is applied and persisted as a unit.
type Manifest interface {
	// View returns a deep copy of the current document.
	View() *Document
	// Update applies fn to a copy of the document and persists it. When fn
	// or persisting fails the previous state is kept.
	Update(ctx context.Context, fn func(*Document) error) error
}

// Memory is a Manifest that is never persisted.
type Memory struct {
	mu  sync.Mutex
	doc *Document
}

// NewMemory returns an empty in-memory manifest.
func NewMemory() *Memory {
	return &Memory{doc: &Document{Version: Version}}
}

func (m *Memory) View() *Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.doc)
}

func (m *Memory) Update(ctx context.Context, fn func(*Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := clone(m.doc)
	if err := fn(next); err != nil {
		return err
	}
	m.doc = next
	return nil
}

func clone(d *Document) *Document {
	data, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("manifest: marshal: %v", err))
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("manifest: unmarshal: %v", err))
	}
	return &out
}
