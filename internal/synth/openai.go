package synth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/openeduvoice/slidevoice/internal/config"
)

// OpenAI synthesizes with the audio/speech endpoint and requests WAV.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI speech synthesizer.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

func (o *OpenAI) Name() string { return "openai" }
func (o *OpenAI) Ext() string  { return ".wav" }

func (o *OpenAI) Synthesize(ctx context.Context, text, lang string, voice config.Voice) ([]byte, error) {
	name := voice.Name
	if name == "" {
		name = "alloy"
	}
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(name),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if voice.Speed > 0 && voice.Speed != 1 {
		params.Speed = openai.Float(voice.Speed)
	}

	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai speech: empty audio")
	}
	return data, nil
}
