package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/storage"
)

// File is a Manifest persisted as JSON at FileName in a project store. Every
// Update rewrites the whole file atomically.
type File struct {
	mu    sync.Mutex
	doc   *Document
	store storage.Store
	log   zerolog.Logger
}

// OpenFile loads the manifest from store, or starts an empty one if the
// project has none yet.
func OpenFile(ctx context.Context, store storage.Store, log zerolog.Logger) (*File, error) {
	f := &File{
		doc:   &Document{Version: Version},
		store: store,
		log:   log.With().Str("component", "manifest").Logger(),
	}
	if !store.Exists(ctx, FileName) {
		return f, nil
	}

	rc, err := store.Open(ctx, FileName)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", doc.Version, Version)
	}
	doc.Version = Version
	f.doc = &doc
	f.log.Debug().Int("slides", len(doc.Slides)).Msg("manifest loaded")
	return f, nil
}

func (f *File) View() *Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.doc)
}

func (f *File) Update(ctx context.Context, fn func(*Document) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := clone(f.doc)
	if err := fn(next); err != nil {
		return err
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := f.store.Save(ctx, FileName, data, "application/json"); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	f.doc = next
	return nil
}
