package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/openeduvoice/slidevoice/internal/storage"
)

// Segment is one timed span of a transcript, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the transcript artifact of a slide.
type Transcript struct {
	Slide    int       `json:"slide"`
	Language string    `json:"language,omitempty"`
	Provider string    `json:"provider"`
	Model    string    `json:"model,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Translation is the narration translation artifact of a slide.
type Translation struct {
	Slide      int    `json:"slide"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Source     string `json:"source"`
	Target     string `json:"target"`
}

// RunTranslation is the translation of one on-slide text run.
type RunTranslation struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// SlideText is the visible-text translation artifact of a slide.
type SlideText struct {
	Slide      int              `json:"slide"`
	SourceLang string           `json:"source_lang"`
	TargetLang string           `json:"target_lang"`
	Runs       []RunTranslation `json:"runs"`
}

// Texts maps run IDs to translated text.
func (s *SlideText) Texts() map[string]string {
	out := make(map[string]string, len(s.Runs))
	for _, r := range s.Runs {
		out[r.ID] = r.Target
	}
	return out
}

// WriteJSON stores v as indented JSON at key.
func WriteJSON(ctx context.Context, store storage.Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return store.Save(ctx, key, data, "application/json")
}

// ReadJSON decodes the JSON artifact at key into v.
func ReadJSON(ctx context.Context, store storage.Store, key string, v any) error {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	return nil
}
