package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// FileName is the manifest key inside the project root.
	FileName = "manifest.json"
	// MetricsFileName is where the run metrics are written.
	MetricsFileName = "metrics.prom"
)

var tagDirs = map[Tag]string{
	TagRawAudio:     "media",
	TagConvertedWAV: "converted_wav",
	TagTranscript:   "transcripts",
	TagTranslation:  "translated",
	TagSlideText:    "translated",
	TagTTSAudio:     "tts_audio",
}

// Dir returns the project directory that holds artifacts of tag.
func Dir(tag Tag) string {
	return tagDirs[tag]
}

// Key returns the artifact key for slide index i. Files are numbered from 1
// so they match the slide numbers PowerPoint shows. ext includes the dot.
func Key(tag Tag, slide int, ext string) string {
	name := fmt.Sprintf("slide_%02d", slide+1)
	if tag == TagSlideText {
		name += "_text"
	}
	return tagDirs[tag] + "/" + name + ext
}

// Name returns the project name derived from the source file name.
func Name(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Root returns the project directory: outDir when set, otherwise
// "{name}_transcript" next to the source package.
func Root(source, outDir string) string {
	if outDir != "" {
		return outDir
	}
	return filepath.Join(filepath.Dir(source), Name(source)+"_transcript")
}

// CombinedKey returns the key of the reintegrated package.
func CombinedKey(name string) string {
	return name + "_combined.pptx"
}
