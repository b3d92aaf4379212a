package transcribe

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// WhisperClient talks to a self-hosted OpenAI-compatible transcription
// server (faster-whisper-server, speaches) at a full endpoint URL.
type WhisperClient struct {
	url   string
	model string
	http  *http.Client
}

// NewWhisperClient returns a client for the endpoint at url.
func NewWhisperClient(url, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{url: url, model: model, http: &http.Client{Timeout: timeout}}
}

func (wc *WhisperClient) Name() string  { return "whisper" }
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe uploads the file and asks for verbose_json so segment timings
// come back. Temperature is always sent since these servers default to a
// fallback schedule; other options only when set.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	up := newUpload("whisper", wc.url, "file").
		field("model", wc.model).
		field("language", opts.Language).
		field("temperature", strconv.FormatFloat(opts.Temperature, 'f', 2, 64)).
		field("response_format", "verbose_json").
		field("timestamp_granularities[]", "segment").
		field("prompt", opts.Prompt).
		field("hotwords", opts.Hotwords).
		intField("beam_size", opts.BeamSize)
	if opts.VadFilter {
		up.field("vad_filter", "true")
	}

	var body verboseJSON
	if err := up.post(ctx, wc.http, audioPath, &body); err != nil {
		return nil, err
	}
	return body.response(), nil
}
