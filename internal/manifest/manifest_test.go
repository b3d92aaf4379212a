package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openeduvoice/slidevoice/internal/pptx"
	"github.com/openeduvoice/slidevoice/internal/storage"
)

func seed(d *Document) error {
	d.Project = Project{Source: "/decks/intro.pptx", Name: "intro", SourceLang: "de", TargetLang: "en"}
	d.Extracted = true
	d.Slides = []Slide{
		{Index: 0, Part: "ppt/slides/slide1.xml", Audio: &pptx.Audio{RelIDs: []string{"rId2"}, Part: "ppt/media/media1.mp3", Ext: ".mp3"}},
		{Index: 1, Part: "ppt/slides/slide2.xml", Runs: []pptx.Run{{ID: "p0.r0", Text: "Hallo"}}},
	}
	return nil
}

func TestSlideEntryDefaultsToPending(t *testing.T) {
	var s Slide
	assert.Equal(t, StatusPending, s.Entry(TagRawAudio).Status)

	s.Set(TagRawAudio, Entry{Status: StatusDone, Path: "media/slide_01.mp3"})
	assert.Equal(t, StatusDone, s.Entry(TagRawAudio).Status)
	assert.Equal(t, StatusPending, s.Entry(TagTranscript).Status)
}

func TestMemory_UpdateIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, seed))

	boom := errors.New("boom")
	err := m.Update(ctx, func(d *Document) error {
		d.Slides[0].Set(TagRawAudio, Entry{Status: StatusDone})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusPending, m.View().Slides[0].Entry(TagRawAudio).Status)
}

func TestMemory_ViewIsACopy(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Update(context.Background(), seed))

	v := m.View()
	v.Slides[0].Set(TagRawAudio, Entry{Status: StatusFailed})
	v.Slides[1].Runs[0].Text = "changed"

	fresh := m.View()
	assert.Equal(t, StatusPending, fresh.Slides[0].Entry(TagRawAudio).Status)
	assert.Equal(t, "Hallo", fresh.Slides[1].Runs[0].Text)
}

func TestMemory_ConcurrentUpdates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, seed))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update(ctx, func(d *Document) error {
				d.Runs = append(d.Runs, StageRun{Stage: "convert"})
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, m.View().Runs, 50)
}

func TestFile_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewLocalStore(dir)
	ctx := context.Background()

	f, err := OpenFile(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, f.View().Extracted)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.Update(ctx, seed))
	require.NoError(t, f.Update(ctx, func(d *Document) error {
		d.Slides[0].Set(TagRawAudio, Entry{Status: StatusDone, Path: "media/slide_01.mp3", UpdatedAt: now})
		return nil
	}))
	assert.True(t, store.Valid(FileName))

	again, err := OpenFile(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	doc := again.View()
	assert.True(t, doc.Extracted)
	require.Len(t, doc.Slides, 2)
	e := doc.Slides[0].Entry(TagRawAudio)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, "media/slide_01.mp3", e.Path)
	assert.True(t, now.Equal(e.UpdatedAt))
	assert.Equal(t, []string{"rId2"}, doc.Slides[0].Audio.RelIDs)
}

func TestFile_RejectsNewerVersionAndGarbage(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"version": 99}`), 0o644))
	_, err := OpenFile(ctx, store, zerolog.Nop())
	assert.ErrorContains(t, err, "newer")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{not json`), 0o644))
	_, err = OpenFile(ctx, store, zerolog.Nop())
	assert.ErrorContains(t, err, "parse manifest")
}

func TestLayout(t *testing.T) {
	tests := []struct {
		tag  Tag
		ext  string
		want string
	}{
		{TagRawAudio, ".mp3", "media/slide_03.mp3"},
		{TagConvertedWAV, ".wav", "converted_wav/slide_03.wav"},
		{TagTranscript, ".json", "transcripts/slide_03.json"},
		{TagTranslation, ".json", "translated/slide_03.json"},
		{TagSlideText, ".json", "translated/slide_03_text.json"},
		{TagTTSAudio, ".wav", "tts_audio/slide_03.wav"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.tag, 2, tt.ext))
	}

	assert.Equal(t, "Vortrag 1", Name("/home/a/Vortrag 1.pptx"))
	assert.Equal(t, filepath.Join("/home/a", "Vortrag 1_transcript"), Root("/home/a/Vortrag 1.pptx", ""))
	assert.Equal(t, "/tmp/out", Root("/home/a/Vortrag 1.pptx", "/tmp/out"))
	assert.Equal(t, "Vortrag 1_combined.pptx", CombinedKey("Vortrag 1"))
}

func TestRecordsRoundTrip(t *testing.T) {
	store := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()

	st := SlideText{Slide: 1, SourceLang: "de", TargetLang: "en", Runs: []RunTranslation{
		{ID: "p0.r0", Source: "Hallo", Target: "Hello"},
		{ID: "p1.r2", Source: "Welt", Target: "World"},
	}}
	key := Key(TagSlideText, 1, ".json")
	require.NoError(t, WriteJSON(ctx, store, key, st))

	var got SlideText
	require.NoError(t, ReadJSON(ctx, store, key, &got))
	assert.Equal(t, map[string]string{"p0.r0": "Hello", "p1.r2": "World"}, got.Texts())

	assert.Error(t, ReadJSON(ctx, store, "translated/missing.json", &got))
}
