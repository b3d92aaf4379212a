package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVoices(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		vm, err := LoadVoices("")
		if err != nil {
			t.Fatalf("LoadVoices: %v", err)
		}
		if _, ok := vm["en"]; !ok {
			t.Error("missing default voice for en")
		}
	})

	t.Run("file_overrides_and_extends", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "voices.yaml")
		data := `voices:
  en:
    name: nova
    model: en_GB-alan-medium.onnx
  FR:
    name: shimmer
    speed: 1.1
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		vm, err := LoadVoices(path)
		if err != nil {
			t.Fatalf("LoadVoices: %v", err)
		}
		if vm["en"].Name != "nova" || vm["en"].Speed != 1.0 {
			t.Errorf("en = %+v, want nova at speed 1.0", vm["en"])
		}
		if vm["fr"].Speed != 1.1 {
			t.Errorf("fr speed = %v, want 1.1", vm["fr"].Speed)
		}
		if _, ok := vm["de"]; !ok {
			t.Error("default de voice lost after merge")
		}
		if DefaultVoices["en"].Name != "alloy" {
			t.Error("LoadVoices mutated DefaultVoices")
		}
	})

	t.Run("bad_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "voices.yaml")
		os.WriteFile(path, []byte("voices: [not, a, map"), 0o644)
		if _, err := LoadVoices(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestVoiceMapFor(t *testing.T) {
	vm := VoiceMap{"en": {Name: "alloy"}, "pt-br": {Name: "nova"}}
	tests := []struct {
		lang   string
		want   string
		wantOK bool
	}{
		{"en", "alloy", true},
		{"EN-gb", "alloy", true},
		{"pt-BR", "nova", true},
		{"de", "", false},
	}
	for _, tt := range tests {
		got, ok := vm.For(tt.lang)
		if ok != tt.wantOK || got.Name != tt.want {
			t.Errorf("For(%q) = %q, %v; want %q, %v", tt.lang, got.Name, ok, tt.want, tt.wantOK)
		}
	}
}
