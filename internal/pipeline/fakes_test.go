package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openeduvoice/slidevoice/internal/config"
	"github.com/openeduvoice/slidevoice/internal/manifest"
	"github.com/openeduvoice/slidevoice/internal/notify"
	"github.com/openeduvoice/slidevoice/internal/pptx/pptxtest"
	"github.com/openeduvoice/slidevoice/internal/storage"
	"github.com/openeduvoice/slidevoice/internal/transcribe"
)

type fakeConverter struct {
	calls    atomic.Int32
	checkErr error
	// before runs ahead of each conversion, e.g. to cancel the run.
	before func()
}

func (c *fakeConverter) Name() string                { return "fake" }
func (c *fakeConverter) Check(context.Context) error { return c.checkErr }

func (c *fakeConverter) Convert(ctx context.Context, in, out string) error {
	c.calls.Add(1)
	if c.before != nil {
		c.before()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("WAV:"), data...), 0o644)
}

type fakeTranscriber struct {
	calls atomic.Int32
	text  string
	// fail names converted files, by base name, whose transcription errors.
	fail map[string]bool
	opts transcribe.TranscribeOpts
	mu   sync.Mutex
}

func (f *fakeTranscriber) Name() string  { return "fake" }
func (f *fakeTranscriber) Model() string { return "fake-model" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string, opts transcribe.TranscribeOpts) (*transcribe.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.opts = opts
	failing := f.fail[filepath.Base(path)]
	f.mu.Unlock()
	if failing {
		return nil, errors.New("backend rejected audio")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &transcribe.Response{
		Text:     f.text,
		Language: "de",
		Duration: 1.5,
		Segments: []transcribe.Segment{{Start: 0, End: 1.5, Text: f.text}},
	}, nil
}

func (f *fakeTranscriber) setFail(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = map[string]bool{}
	for _, n := range names {
		f.fail[n] = true
	}
}

type fakeTranslator struct {
	calls atomic.Int32
	dict  map[string]string
	// fail lists source texts the backend rejects. Set it between runs only.
	fail map[string]bool
}

func (f *fakeTranslator) Name() string { return "fake" }

func (f *fakeTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	f.calls.Add(1)
	if f.fail[text] {
		return "", errors.New("translation service overloaded")
	}
	if out, ok := f.dict[text]; ok {
		return out, nil
	}
	return strings.ToUpper(text), nil
}

type fakeSynth struct {
	calls atomic.Int32
	mu    sync.Mutex
	voice config.Voice
}

func (f *fakeSynth) Name() string { return "fake" }
func (f *fakeSynth) Ext() string  { return ".wav" }

func (f *fakeSynth) Synthesize(ctx context.Context, text, lang string, voice config.Voice) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.voice = voice
	f.mu.Unlock()
	return []byte("RIFF tts " + text), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Publish(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) Close() {}

func (r *recordingNotifier) kinds(kind string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// fixture is a project on disk with fake backends. Every call to open
// reloads the manifest from disk, like a fresh CLI invocation.
type fixture struct {
	t      *testing.T
	deck   pptxtest.Deck
	source string
	root   string

	conv  *fakeConverter
	stt   *fakeTranscriber
	tr    *fakeTranslator
	tts   *fakeSynth
	notes *recordingNotifier
}

func newFixture(t *testing.T, deck pptxtest.Deck) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		t:      t,
		deck:   deck,
		source: filepath.Join(dir, "deck.pptx"),
		root:   filepath.Join(dir, "deck_transcript"),
		conv:   &fakeConverter{},
		stt:    &fakeTranscriber{text: "Hallo zusammen"},
		tr: &fakeTranslator{dict: map[string]string{
			"Hallo zusammen": "Hello everyone",
			"Guten Morgen":   "Good morning",
			"Nur Text":       "Text only",
		}},
		tts:   &fakeSynth{},
		notes: &recordingNotifier{},
	}
	deck.Write(t, f.source)
	return f
}

func (f *fixture) capabilities() Capabilities {
	return Capabilities{
		Converter:   f.conv,
		Transcriber: f.stt,
		Translator:  f.tr,
		Synthesizer: f.tts,
	}
}

func (f *fixture) open(mutate ...func(*Options)) *Pipeline {
	f.t.Helper()
	local := storage.NewLocalStore(f.root)
	mf, err := manifest.OpenFile(context.Background(), local, zerolog.Nop())
	require.NoError(f.t, err)
	opts := Options{
		Source:       f.source,
		Local:        local,
		Manifest:     mf,
		Capabilities: f.capabilities(),
		SourceLang:   "de",
		TargetLang:   "en",
		IOWorkers:    4,
		ModelWorkers: 2,
		STTOptions:   transcribe.TranscribeOpts{Language: "de"},
		Notifier:     f.notes,
		Log:          zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	p, err := New(opts)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) backendCalls() int {
	return int(f.conv.calls.Load() + f.stt.calls.Load() + f.tr.calls.Load() + f.tts.calls.Load())
}

func (f *fixture) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

// snapshot returns the contents of every artifact under the project root.
// The manifest and metrics change on every run and are left out.
func (f *fixture) snapshot() map[string]string {
	f.t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(f.root, path)
		rel = filepath.ToSlash(rel)
		if rel == manifest.FileName || rel == manifest.MetricsFileName {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(f.t, err)
	return out
}

// threeSlides has narration and text on slide 1, only text on slide 2 and
// nothing on slide 3.
func threeSlides() pptxtest.Deck {
	return pptxtest.Deck{Slides: []pptxtest.Slide{
		{Paragraphs: [][]string{{"Guten Morgen"}}, Audio: []byte("ID3 original narration")},
		{Paragraphs: [][]string{{"Nur Text"}}},
		{},
	}}
}
