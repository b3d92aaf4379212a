package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
)

// WhisperCPP runs a local whisper.cpp build (whisper-cli) on each file.
type WhisperCPP struct {
	path     string
	model    string
	vadModel string
	runner   command.Runner
	log      zerolog.Logger
}

// whisperCPPOutput is the file written by whisper-cli -oj.
type whisperCPPOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// NewWhisperCPP creates a whisper.cpp provider. model is the path to a ggml
// model file.
func NewWhisperCPP(path, model string, runner command.Runner, log zerolog.Logger) *WhisperCPP {
	if path == "" {
		path = "whisper-cli"
	}
	return &WhisperCPP{
		path:   path,
		model:  model,
		runner: runner,
		log:    log.With().Str("component", "whispercpp").Logger(),
	}
}

// WithVADModel sets the Silero VAD model whisper-cli needs for --vad.
// Without one, VadFilter requests are decoded without VAD.
func (wc *WhisperCPP) WithVADModel(path string) *WhisperCPP {
	wc.vadModel = path
	return wc
}

func (wc *WhisperCPP) Name() string  { return "whispercpp" }
func (wc *WhisperCPP) Model() string { return filepath.Base(wc.model) }

// Check verifies the binary and model file exist.
func (wc *WhisperCPP) Check(ctx context.Context) error {
	if _, err := command.Check(wc.path); err != nil {
		return err
	}
	if wc.model == "" {
		return fmt.Errorf("whisper.cpp model not configured (WHISPER_MODEL_PATH)")
	}
	if _, err := os.Stat(wc.model); err != nil {
		return fmt.Errorf("whisper.cpp model: %w", err)
	}
	if wc.vadModel != "" {
		if _, err := os.Stat(wc.vadModel); err != nil {
			return fmt.Errorf("whisper.cpp VAD model: %w", err)
		}
	}
	return nil
}

// Transcribe runs whisper-cli with JSON output into a scratch directory and
// parses the result. The input must be 16 kHz WAV.
func (wc *WhisperCPP) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	dir, err := os.MkdirTemp("", "slidevoice-whispercpp-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)
	prefix := filepath.Join(dir, "out")

	args := []string{
		"-m", wc.model,
		"-f", audioPath,
		"-oj",
		"-of", prefix,
		"-np",
	}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	} else {
		args = append(args, "-l", "auto")
	}
	if opts.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(opts.BeamSize))
	}
	if opts.Temperature > 0 {
		args = append(args, "-tp", strconv.FormatFloat(opts.Temperature, 'f', 2, 64))
	}
	if opts.Prompt != "" {
		args = append(args, "--prompt", opts.Prompt)
	}
	if opts.VadFilter {
		if wc.vadModel != "" {
			args = append(args, "--vad", "-vm", wc.vadModel)
		} else {
			wc.log.Debug().Msg("VAD requested but WHISPER_VAD_MODEL_PATH is unset")
		}
	}

	if _, err := wc.runner.Run(ctx, nil, wc.path, args...); err != nil {
		return nil, fmt.Errorf("whisper.cpp: %w", err)
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp output: %w", err)
	}
	var out whisperCPPOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode whisper.cpp output: %w", err)
	}

	resp := &Response{Language: out.Result.Language}
	for _, t := range out.Transcription {
		seg := Segment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  t.Text,
		}
		resp.Segments = append(resp.Segments, seg)
		if seg.End > resp.Duration {
			resp.Duration = seg.End
		}
	}
	wc.log.Debug().Str("file", audioPath).Int("segments", len(resp.Segments)).Msg("transcribed")
	return Normalize(resp), nil
}
