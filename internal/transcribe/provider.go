package transcribe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whispercpp", "whisper", "deepinfra", "elevenlabs"
	Model() string // model identifier for the manifest and logs
}

// Checker is implemented by providers that can verify their backend is
// reachable before any audio is sent.
type Checker interface {
	Check(ctx context.Context) error
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64   // audio duration in seconds
	Segments []Segment // ordered by Start after Normalize
	Words    []Word    // nil if provider doesn't support word timestamps
}

// Segment is a timed span of speech.
type Segment struct {
	Start float64 // seconds
	End   float64 // seconds
	Text  string
}

// Word is a timestamped word from any STT provider.
type Word struct {
	Word  string
	Start float64 // seconds
	End   float64 // seconds
}

// TranscribeOpts are per-request decoding options. Zero values are left to
// the backend's defaults.
type TranscribeOpts struct {
	Language    string // ISO 639-1 hint; empty lets the backend detect
	Prompt      string // initial prompt / domain vocabulary
	Hotwords    string // comma-separated vocabulary boost terms
	Temperature float64
	BeamSize    int
	VadFilter   bool
}

// New builds the provider selected by cfg.STTProvider.
func New(cfg *config.Config, runner command.Runner, log zerolog.Logger) (Provider, error) {
	switch strings.ToLower(cfg.STTProvider) {
	case "", "whispercpp", "whisper.cpp":
		return NewWhisperCPP(cfg.WhisperCPPPath, cfg.WhisperModelPath, runner, log).WithVADModel(cfg.WhisperVADModel), nil
	case "whisper":
		return NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperTimeout), nil
	case "deepinfra":
		if cfg.DeepInfraAPIKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=deepinfra requires DEEPINFRA_API_KEY")
		}
		return NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, cfg.WhisperTimeout), nil
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
		return NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsSTTModel, "", cfg.WhisperTimeout), nil
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}
}

// Normalize puts a response into the shape callers rely on: segments in
// temporal order with non-decreasing, non-inverted timestamps, blank
// segments dropped, and Text filled from the segments when the backend left
// it empty. Responses with only word timings get segments built from words.
func Normalize(resp *Response) *Response {
	if len(resp.Segments) == 0 && len(resp.Words) > 0 {
		resp.Segments = SegmentsFromWords(resp.Words)
	}

	segs := resp.Segments[:0]
	for _, s := range resp.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		segs = append(segs, s)
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	var last float64
	for i := range segs {
		if segs[i].Start < last {
			segs[i].Start = last
		}
		if segs[i].Start < 0 {
			segs[i].Start = 0
		}
		if segs[i].End < segs[i].Start {
			segs[i].End = segs[i].Start
		}
		last = segs[i].Start
	}
	resp.Segments = segs

	resp.Text = strings.TrimSpace(resp.Text)
	if resp.Text == "" && len(segs) > 0 {
		parts := make([]string, len(segs))
		for i, s := range segs {
			parts[i] = s.Text
		}
		resp.Text = strings.Join(parts, " ")
	}
	return resp
}
