package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/config"
)

// Store abstracts where project artifacts and the manifest are persisted.
type Store interface {
	// Save stores data atomically. key is a slash-separated path relative to
	// the project root, e.g. "transcripts/slide_03.json".
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the artifact.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an artifact exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type names the backend for logs.
	Type() string
}

// Mirrorer is implemented by stores that can push an already-written local
// file to a secondary backend.
type Mirrorer interface {
	Mirror(ctx context.Context, key string) error
}

// New opens the store for the project at root. Without a bucket configured
// it is the local store itself; otherwise writes are mirrored to the bucket
// under cfg.Prefix/project, which must answer a HEAD within ten seconds.
func New(ctx context.Context, cfg config.S3Config, root, project string, log zerolog.Logger) (Store, *LocalStore, error) {
	local := NewLocalStore(root)
	if !cfg.Enabled() {
		return local, local, nil
	}

	bucket, err := NewBucket(ctx, cfg, project)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := bucket.Ping(pingCtx); err != nil {
		return nil, nil, fmt.Errorf("s3 bucket %q unreachable (endpoint %q): %w", cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("prefix", bucket.prefix).Msg("mirroring outputs to s3")

	return NewMirrored(local, bucket, log), local, nil
}

// ContentTypeFromExt returns the MIME type for an artifact file extension.
func ContentTypeFromExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "m4a", "mp4":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "wma":
		return "audio/x-ms-wma"
	case "aac":
		return "audio/aac"
	case "ogg", "oga":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "aif", "aiff":
		return "audio/x-aiff"
	case "mid", "midi":
		return "audio/midi"
	case "json":
		return "application/json"
	case "txt":
		return "text/plain; charset=utf-8"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return "application/octet-stream"
	}
}
