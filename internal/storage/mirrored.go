package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/rs/zerolog"
)

// Mirrored keeps local disk as the project's source of truth and copies
// writes to a remote store. A failed remote write is logged, never returned,
// so an unreachable bucket cannot fail a stage.
type Mirrored struct {
	local  *LocalStore
	remote *Bucket
	log    zerolog.Logger
}

// NewMirrored returns a store writing to local and mirroring into remote.
func NewMirrored(local *LocalStore, remote *Bucket, log zerolog.Logger) *Mirrored {
	return &Mirrored{local: local, remote: remote, log: log.With().Str("component", "mirror").Logger()}
}

func (m *Mirrored) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if err := m.local.Save(ctx, key, data, contentType); err != nil {
		return err
	}
	if err := m.remote.Save(ctx, key, data, contentType); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("mirror write failed")
	}
	return nil
}

// Mirror copies a file already committed under the local root.
func (m *Mirrored) Mirror(ctx context.Context, key string) error {
	f, err := os.Open(m.local.Path(key))
	if err != nil {
		return err
	}
	defer f.Close()
	return m.remote.Put(ctx, key, f, ContentTypeFromExt(path.Ext(key)))
}

// Open prefers the local copy. A file only found remotely, such as a
// manifest restored on a fresh machine, is written back to disk first.
func (m *Mirrored) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.local.Exists(ctx, key) {
		return m.local.Open(ctx, key)
	}
	rc, err := m.remote.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if err := m.local.Save(ctx, key, data, ""); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("restore to local disk failed")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Mirrored) Exists(ctx context.Context, key string) bool {
	return m.local.Exists(ctx, key) || m.remote.Exists(ctx, key)
}

func (m *Mirrored) Type() string { return "local+s3" }
