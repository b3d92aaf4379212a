// Package convert normalizes narration audio to the WAV format the
// transcription backends expect.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
)

const (
	// SampleRate is the sample rate of every converted WAV.
	SampleRate = 16000
	// Channels is the channel count of every converted WAV.
	Channels = 1
)

// Converter turns one audio file into a mono PCM WAV at SampleRate.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
	Name() string
}

// New builds the converter selected by cfg.Converter.
func New(cfg *config.Config, runner command.Runner, log zerolog.Logger) (Converter, error) {
	switch strings.ToLower(cfg.Converter) {
	case "", "ffmpeg":
		return NewFFmpeg(cfg.FFmpegPath, runner, log), nil
	case "sox":
		return NewSox(cfg.SoxPath, runner, log), nil
	default:
		return nil, fmt.Errorf("unknown CONVERTER %q", cfg.Converter)
	}
}

// FFmpeg converts with the ffmpeg CLI.
type FFmpeg struct {
	path   string
	runner command.Runner
	log    zerolog.Logger
}

// NewFFmpeg creates an ffmpeg converter. path may be a bare binary name.
func NewFFmpeg(path string, runner command.Runner, log zerolog.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		path:   path,
		runner: runner,
		log:    log.With().Str("component", "ffmpeg").Logger(),
	}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

// Check verifies the ffmpeg binary can be found.
func (f *FFmpeg) Check(ctx context.Context) error {
	_, err := command.Check(f.path)
	return err
}

// Convert writes in as 16 kHz mono s16le WAV to out. The bitexact flags and
// stripped metadata keep the output identical across runs.
func (f *FFmpeg) Convert(ctx context.Context, in, out string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
		"-f", "wav",
		out,
	}
	if _, err := f.runner.Run(ctx, nil, f.path, args...); err != nil {
		return fmt.Errorf("ffmpeg %s: %w", filepath.Base(in), err)
	}
	if err := checkOutput(out); err != nil {
		return fmt.Errorf("ffmpeg %s: %w", filepath.Base(in), err)
	}
	f.log.Debug().Str("input", in).Str("output", out).Msg("converted")
	return nil
}

func checkOutput(out string) error {
	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output")
	}
	return nil
}
