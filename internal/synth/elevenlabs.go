package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openeduvoice/slidevoice/internal/config"
)

const elevenLabsTTSEndpoint = "https://api.elevenlabs.io/v1/text-to-speech/"

// ElevenLabs calls the ElevenLabs text-to-speech API. The voice name in the
// voice map is the ElevenLabs voice ID.
type ElevenLabs struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewElevenLabs creates an ElevenLabs synthesizer.
func NewElevenLabs(apiKey, model string, timeout time.Duration) *ElevenLabs {
	return &ElevenLabs{
		endpoint: elevenLabsTTSEndpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (el *ElevenLabs) Name() string { return "elevenlabs" }
func (el *ElevenLabs) Ext() string  { return ".mp3" }

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	LanguageCode  string                   `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Speed float64 `json:"speed"`
}

func (el *ElevenLabs) Synthesize(ctx context.Context, text, lang string, voice config.Voice) ([]byte, error) {
	if voice.Name == "" {
		return nil, fmt.Errorf("elevenlabs: no voice ID configured for %q", lang)
	}
	body := elevenLabsRequest{Text: text, ModelID: el.model}
	if voice.Model != "" && !strings.HasSuffix(voice.Model, ".onnx") {
		body.ModelID = voice.Model
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	body.LanguageCode = strings.ToLower(lang)
	if voice.Speed > 0 && voice.Speed != 1 {
		body.VoiceSettings = &elevenLabsVoiceSettings{Speed: voice.Speed}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	u := el.endpoint + url.PathEscape(voice.Name) + "?output_format=mp3_44100_128"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", el.apiKey)

	resp, err := el.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}
	return data, nil
}
