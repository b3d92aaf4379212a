package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_SaveAndValid(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	if s.Valid("media/slide_00.mp3") {
		t.Fatal("Valid should be false before Save")
	}
	if err := s.Save(ctx, "media/slide_00.mp3", []byte("ID3data"), "audio/mpeg"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Valid("media/slide_00.mp3") {
		t.Error("Valid = false after Save, want true")
	}
	got, err := os.ReadFile(filepath.Join(dir, "media", "slide_00.mp3"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "ID3data" {
		t.Errorf("content = %q, want ID3data", got)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "media"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLocalStore_ValidRejectsEmpty(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if err := s.Save(context.Background(), "tts_audio/slide_01.wav", nil, "audio/wav"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.Valid("tts_audio/slide_01.wav") {
		t.Error("zero-size artifact must not be valid")
	}
}

func TestLocalStore_SaveOverwrites(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()
	s.Save(ctx, "a.json", []byte("one"), "")
	s.Save(ctx, "a.json", []byte("two"), "")

	r, err := s.Open(ctx, "a.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	buf := make([]byte, 8)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "two" {
		t.Errorf("content = %q, want two", buf[:n])
	}
}

func TestLocalStore_SaveFrom(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if err := s.SaveFrom(context.Background(), "out/deck.pptx", strings.NewReader("PK..")); err != nil {
		t.Fatalf("SaveFrom: %v", err)
	}
	if !s.Valid("out/deck.pptx") {
		t.Error("SaveFrom result not valid")
	}
}

func TestLocalStore_CleanTemps(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	tmp, err := s.CreateTemp("converted_wav/slide_02.wav")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if filepath.Ext(tmp) != ".wav" {
		t.Errorf("temp ext = %q, want .wav", filepath.Ext(tmp))
	}
	if s.Valid("converted_wav/" + filepath.Base(tmp)) {
		t.Error("temp file must never be valid")
	}

	n, err := s.CleanTemps("converted_wav")
	if err != nil {
		t.Fatalf("CleanTemps: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file still present")
	}

	n, err = s.CleanTemps("missing")
	if err != nil || n != 0 {
		t.Errorf("CleanTemps(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestContentTypeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".mp3", "audio/mpeg"},
		{"m4a", "audio/mp4"},
		{".WAV", "audio/wav"},
		{".json", "application/json"},
		{".bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExt(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
