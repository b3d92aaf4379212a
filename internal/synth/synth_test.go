package synth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
)

type piperRunner struct {
	args  []string
	stdin string
	fail  bool
}

func (r *piperRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (command.Result, error) {
	r.args = append([]string{name}, args...)
	data, _ := io.ReadAll(stdin)
	r.stdin = string(data)
	if r.fail {
		return command.Result{ExitCode: 1}, errors.New("exit status 1")
	}
	for i, a := range args {
		if a == "--output_file" {
			if err := os.WriteFile(args[i+1], []byte("RIFF fake wav"), 0o644); err != nil {
				return command.Result{}, err
			}
		}
	}
	return command.Result{Command: name}, nil
}

func TestPiper_Synthesize(t *testing.T) {
	r := &piperRunner{}
	p := NewPiper("", r, zerolog.Nop())

	data, err := p.Synthesize(context.Background(), "Good morning.", "en", config.Voice{Model: "en_US-lessac-medium.onnx", Speed: 1.25})
	require.NoError(t, err)
	assert.Equal(t, "RIFF fake wav", string(data))
	assert.Equal(t, "Good morning.", r.stdin)
	assert.Equal(t, "piper", r.args[0])
	assert.Contains(t, strings.Join(r.args, " "), "--model en_US-lessac-medium.onnx")
	assert.Contains(t, strings.Join(r.args, " "), "--length_scale 0.800")
	assert.Equal(t, ".wav", p.Ext())
}

func TestPiper_Errors(t *testing.T) {
	_, err := NewPiper("", &piperRunner{}, zerolog.Nop()).Synthesize(context.Background(), "x", "fr", config.Voice{})
	assert.ErrorContains(t, err, "no voice model")

	_, err = NewPiper("", &piperRunner{fail: true}, zerolog.Nop()).Synthesize(context.Background(), "x", "en", config.Voice{Model: "m.onnx"})
	assert.ErrorContains(t, err, "piper")
}

func TestElevenLabs_Synthesize(t *testing.T) {
	var (
		voiceID string
		format  string
		key     string
		body    elevenLabsRequest
	)
	r := chi.NewRouter()
	r.Post("/v1/text-to-speech/{voice}", func(w http.ResponseWriter, req *http.Request) {
		voiceID = chi.URLParam(req, "voice")
		format = req.URL.Query().Get("output_format")
		key = req.Header.Get("xi-api-key")
		json.NewDecoder(req.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3 mp3"))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	el := NewElevenLabs("xi", "eleven_multilingual_v2", time.Second)
	el.endpoint = srv.URL + "/v1/text-to-speech/"
	data, err := el.Synthesize(context.Background(), "Hello there.", "en-GB", config.Voice{Name: "voice123", Model: "en_US-lessac-medium.onnx", Speed: 0.9})
	require.NoError(t, err)

	assert.Equal(t, "ID3 mp3", string(data))
	assert.Equal(t, "voice123", voiceID)
	assert.Equal(t, "mp3_44100_128", format)
	assert.Equal(t, "xi", key)
	assert.Equal(t, "Hello there.", body.Text)
	assert.Equal(t, "eleven_multilingual_v2", body.ModelID, "piper model names are ignored")
	assert.Equal(t, "en", body.LanguageCode)
	require.NotNil(t, body.VoiceSettings)
	assert.Equal(t, 0.9, body.VoiceSettings.Speed)
	assert.Equal(t, ".mp3", el.Ext())
}

func TestElevenLabs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	el := NewElevenLabs("xi", "m", time.Second)
	el.endpoint = srv.URL + "/"
	_, err := el.Synthesize(context.Background(), "Hi", "en", config.Voice{Name: "v"})
	assert.ErrorContains(t, err, "status 429")
}

func TestOpenAI_Synthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF openai"))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", srv.URL+"/v1/", "tts-1", 5*time.Second)
	data, err := o.Synthesize(context.Background(), "Hello.", "en", config.Voice{Name: "nova", Speed: 1})
	require.NoError(t, err)
	assert.Equal(t, "RIFF openai", string(data))
	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "nova", body["voice"])
	assert.Equal(t, "wav", body["response_format"])
	assert.NotContains(t, body, "speed")
}

func TestNew(t *testing.T) {
	s, err := New(&config.Config{TTSProvider: "piper", PiperPath: "piper"}, command.ExecRunner{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "piper", s.Name())

	_, err = New(&config.Config{TTSProvider: "elevenlabs"}, command.ExecRunner{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(&config.Config{TTSProvider: "espeak"}, command.ExecRunner{}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown TTS_PROVIDER")
}
