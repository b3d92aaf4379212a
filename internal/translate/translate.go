// Package translate turns source-language text into target-language text
// through a pluggable machine translation backend.
package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/config"
)

// DefaultMaxChars is the chunk size used when none is configured.
const DefaultMaxChars = 400

// Backend translates one chunk of text. src and tgt are ISO 639-1 codes.
type Backend interface {
	Translate(ctx context.Context, text, src, tgt string) (string, error)
	Name() string
}

// Checker is implemented by backends that can verify they are reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Adapter wraps a Backend with the behaviour every caller relies on: blank
// input never reaches the backend, same-language requests are returned
// unchanged, and long input is translated sentence-chunk by sentence-chunk.
type Adapter struct {
	backend  Backend
	maxChars int
	log      zerolog.Logger
}

// NewAdapter wraps b. maxChars <= 0 selects DefaultMaxChars.
func NewAdapter(b Backend, maxChars int, log zerolog.Logger) *Adapter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Adapter{
		backend:  b,
		maxChars: maxChars,
		log:      log.With().Str("component", "translate").Str("backend", b.Name()).Logger(),
	}
}

// Name returns the backend name.
func (a *Adapter) Name() string { return a.backend.Name() }

// Check forwards to the backend when it supports a preflight check.
func (a *Adapter) Check(ctx context.Context) error {
	if c, ok := a.backend.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// Translate translates text from src to tgt. Leading and trailing
// whitespace is kept as is so run text keeps its spacing.
func (a *Adapter) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	core := strings.TrimSpace(text)
	if core == "" {
		return "", nil
	}
	src, tgt = Code(src), Code(tgt)
	if src == tgt {
		return text, nil
	}
	lead := text[:strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })]
	trail := text[len(strings.TrimRightFunc(text, unicode.IsSpace)):]

	chunks := SplitSentences(core, a.maxChars)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := a.backend.Translate(ctx, chunk, src, tgt)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		res = strings.TrimSpace(res)
		if res == "" {
			return "", fmt.Errorf("chunk %d/%d: empty translation", i+1, len(chunks))
		}
		out = append(out, res)
		a.log.Debug().Int("chunk", i+1).Int("chunks", len(chunks)).Int("chars", len(chunk)).Msg("translated chunk")
	}
	return lead + strings.Join(out, " ") + trail, nil
}

// Identity returns its input. It serves decks that only need re-voicing
// and keeps the pipeline usable without a translation engine.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// New builds the backend selected by cfg.TranslateProvider wrapped in an
// Adapter.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Adapter, error) {
	var b Backend
	switch strings.ToLower(cfg.TranslateProvider) {
	case "", "ollama":
		b = NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.TranslateTimeout)
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("TRANSLATE_PROVIDER=openai requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		b = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.TranslateTimeout)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("TRANSLATE_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.TranslateTimeout)
		if err != nil {
			return nil, err
		}
		b = g
	case "identity", "none":
		b = Identity{}
	default:
		return nil, fmt.Errorf("unknown TRANSLATE_PROVIDER %q", cfg.TranslateProvider)
	}
	return NewAdapter(b, cfg.TranslateMaxChars, log), nil
}
