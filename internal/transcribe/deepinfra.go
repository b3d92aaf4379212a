package transcribe

import (
	"context"
	"net/http"
	"time"
)

const deepInfraInferenceURL = "https://api.deepinfra.com/v1/inference/"

// DeepInfraClient uses DeepInfra's hosted Whisper models through the
// native inference API, where the model name is part of the path.
type DeepInfraClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewDeepInfraClient returns a client for model, e.g.
// "openai/whisper-large-v3-turbo".
func NewDeepInfraClient(apiKey, model string, timeout time.Duration) *DeepInfraClient {
	return &DeepInfraClient{
		baseURL: deepInfraInferenceURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

func (di *DeepInfraClient) Name() string  { return "deepinfra" }
func (di *DeepInfraClient) Model() string { return di.model }

// Transcribe uploads the file under the "audio" field. Words come back with
// a "text" key instead of "word"; timedText accepts either.
func (di *DeepInfraClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	up := newUpload("deepinfra", di.baseURL+di.model, "audio").
		field("language", opts.Language).
		field("initial_prompt", opts.Prompt).
		floatField("temperature", opts.Temperature)
	up.header.Set("Authorization", "Bearer "+di.apiKey)

	var body verboseJSON
	if err := up.post(ctx, di.http, audioPath, &body); err != nil {
		return nil, err
	}
	return body.response(), nil
}
