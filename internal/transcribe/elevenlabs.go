package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const elevenLabsSTTURL = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsClient uses the ElevenLabs Scribe models.
type ElevenLabsClient struct {
	endpoint string
	apiKey   string
	model    string
	keyterms []string
	http     *http.Client
}

// scribeResult is the Scribe response. Words interleave "word" and
// "spacing" entries with millisecond timings.
type scribeResult struct {
	LanguageCode string `json:"language_code"`
	Text         string `json:"text"`
	Words        []struct {
		Text    string  `json:"text"`
		Type    string  `json:"type"`
		StartMs float64 `json:"start_time_ms"`
		EndMs   float64 `json:"end_time_ms"`
	} `json:"words"`
}

// NewElevenLabsClient returns a Scribe client. keyterms is a comma-separated
// list of terms boosted on every request.
func NewElevenLabsClient(apiKey, model, keyterms string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		endpoint: elevenLabsSTTURL,
		apiKey:   apiKey,
		model:    model,
		keyterms: splitTerms(keyterms),
		http:     &http.Client{Timeout: timeout},
	}
}

func (el *ElevenLabsClient) Name() string  { return "elevenlabs" }
func (el *ElevenLabsClient) Model() string { return el.model }

// Transcribe uploads the file with word timestamps requested. Segments are
// built from the words by Normalize.
func (el *ElevenLabsClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	up := newUpload("elevenlabs", el.endpoint, "file").
		field("model_id", el.model).
		field("language_code", opts.Language).
		field("timestamps_granularity", "word").
		field("keyterms", el.buildKeyterms(opts.Hotwords))
	up.header.Set("xi-api-key", el.apiKey)

	var body scribeResult
	if err := up.post(ctx, el.http, audioPath, &body); err != nil {
		return nil, err
	}

	out := &Response{Text: body.Text, Language: body.LanguageCode}
	for _, w := range body.Words {
		if w.Type == "word" {
			out.Words = append(out.Words, Word{Word: w.Text, Start: w.StartMs / 1000, End: w.EndMs / 1000})
		}
	}
	return Normalize(out), nil
}

// buildKeyterms encodes the configured terms plus per-request hotwords as
// the JSON array of {"text": ...} objects Scribe expects.
func (el *ElevenLabsClient) buildKeyterms(hotwords string) string {
	terms := append(append([]string(nil), el.keyterms...), splitTerms(hotwords)...)
	if len(terms) == 0 {
		return ""
	}
	objs := make([]map[string]string, len(terms))
	for i, t := range terms {
		objs[i] = map[string]string{"text": t}
	}
	data, _ := json.Marshal(objs)
	return string(data)
}

func splitTerms(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
