package synth

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

// Piper runs the local piper CLI. Text is written to stdin and the WAV is
// read back from an output file.
type Piper struct {
	path   string
	runner command.Runner
	log    zerolog.Logger
}

// NewPiper creates a piper synthesizer.
func NewPiper(path string, runner command.Runner, log zerolog.Logger) *Piper {
	if path == "" {
		path = "piper"
	}
	return &Piper{
		path:   path,
		runner: runner,
		log:    log.With().Str("component", "piper").Logger(),
	}
}

func (p *Piper) Name() string { return "piper" }
func (p *Piper) Ext() string  { return ".wav" }

// Check verifies the piper binary is in PATH.
func (p *Piper) Check(ctx context.Context) error {
	_, err := command.Check(p.path)
	return err
}

func (p *Piper) Synthesize(ctx context.Context, text, lang string, voice config.Voice) ([]byte, error) {
	if voice.Model == "" {
		return nil, fmt.Errorf("piper: no voice model configured for %q", lang)
	}
	dir, err := os.MkdirTemp("", "slidevoice-piper-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.wav")

	args := []string{"--model", voice.Model, "--output_file", out}
	if voice.Speed > 0 && voice.Speed != 1 {
		// piper's length_scale is the inverse of speaking rate
		args = append(args, "--length_scale", strconv.FormatFloat(1/voice.Speed, 'f', 3, 64))
	}

	if _, err := p.runner.Run(ctx, strings.NewReader(text), p.path, args...); err != nil {
		return nil, fmt.Errorf("piper: %w", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("piper output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("piper produced empty output")
	}
	p.log.Debug().Str("model", voice.Model).Int("bytes", len(data)).Msg("synthesized")
	return data, nil
}
