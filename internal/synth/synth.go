// Package synth turns translated narration into speech audio.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
)

// Synthesizer is the interface for text-to-speech backends.
type Synthesizer interface {
	// Synthesize returns the encoded audio for text spoken in lang.
	Synthesize(ctx context.Context, text, lang string, voice config.Voice) ([]byte, error)
	Name() string
	// Ext is the file extension of the returned audio, e.g. ".wav".
	Ext() string
}

// Checker is implemented by backends that can verify they are usable
// before any text is sent.
type Checker interface {
	Check(ctx context.Context) error
}

// New builds the synthesizer selected by cfg.TTSProvider.
func New(cfg *config.Config, runner command.Runner, log zerolog.Logger) (Synthesizer, error) {
	switch strings.ToLower(cfg.TTSProvider) {
	case "", "piper":
		return NewPiper(cfg.PiperPath, runner, log), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("TTS_PROVIDER=openai requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSModel, cfg.TTSTimeout), nil
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("TTS_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
		return NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel, cfg.TTSTimeout), nil
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTSProvider)
	}
}
