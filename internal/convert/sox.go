package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
)

// Sox converts with sox. It handles fewer input codecs than ffmpeg (no
// m4a or wma without extra handlers) but is often installed where ffmpeg
// is not.
type Sox struct {
	path   string
	runner command.Runner
	log    zerolog.Logger
}

func NewSox(path string, runner command.Runner, log zerolog.Logger) *Sox {
	if path == "" {
		path = "sox"
	}
	return &Sox{
		path:   path,
		runner: runner,
		log:    log.With().Str("component", "sox").Logger(),
	}
}

func (s *Sox) Name() string { return "sox" }

func (s *Sox) Check(ctx context.Context) error {
	_, err := command.Check(s.path)
	return err
}

// Convert resamples in to 16 kHz mono 16-bit WAV and normalizes volume.
func (s *Sox) Convert(ctx context.Context, in, out string) error {
	args := []string{
		"--no-dither",
		in,
		"-b", "16", "-e", "signed-integer", "-t", "wav", out,
		"rate", strconv.Itoa(SampleRate),
		"channels", strconv.Itoa(Channels),
		"norm",
	}
	if _, err := s.runner.Run(ctx, nil, s.path, args...); err != nil {
		return fmt.Errorf("sox %s: %w", filepath.Base(in), err)
	}
	if err := checkOutput(out); err != nil {
		return fmt.Errorf("sox %s: %w", filepath.Base(in), err)
	}
	s.log.Debug().Str("input", in).Str("output", out).Msg("converted")
	return nil
}
