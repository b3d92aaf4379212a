package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Voice selects how narration is synthesized for one target language.
// Which fields matter depends on the TTS provider: piper reads Model,
// OpenAI and ElevenLabs read Name.
type Voice struct {
	Name  string  `yaml:"name"`
	Model string  `yaml:"model"`
	Speed float64 `yaml:"speed"`
}

// VoiceMap maps ISO 639-1 language codes to voices.
type VoiceMap map[string]Voice

// DefaultVoices is used for languages the voice map file does not mention.
var DefaultVoices = VoiceMap{
	"en": {Name: "alloy", Model: "en_US-lessac-medium.onnx", Speed: 1.0},
	"de": {Name: "onyx", Model: "de_DE-thorsten-medium.onnx", Speed: 1.0},
}

type voiceFile struct {
	Voices VoiceMap `yaml:"voices"`
}

// LoadVoices merges the YAML voice map at path over DefaultVoices.
// An empty path returns the defaults.
func LoadVoices(path string) (VoiceMap, error) {
	out := make(VoiceMap, len(DefaultVoices))
	for k, v := range DefaultVoices {
		out[k] = v
	}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice map: %w", err)
	}
	var vf voiceFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse voice map %s: %w", path, err)
	}
	for lang, v := range vf.Voices {
		if v.Speed == 0 {
			v.Speed = 1.0
		}
		out[strings.ToLower(lang)] = v
	}
	return out, nil
}

// For returns the voice for lang, falling back to the base language of a
// regional code ("en-GB" → "en").
func (m VoiceMap) For(lang string) (Voice, bool) {
	lang = strings.ToLower(lang)
	if v, ok := m[lang]; ok {
		return v, true
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		v, ok := m[lang[:i]]
		return v, ok
	}
	return Voice{}, false
}
