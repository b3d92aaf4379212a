package pipeline

import (
	"fmt"
	"strings"

	"github.com/openeduvoice/slidevoice/internal/manifest"
)

// Stage is one step of the linear pipeline.
type Stage int

const (
	StageNone Stage = iota
	StageExtract
	StageConvert
	StageTranscribe
	StageTranslate
	StageSynthesize
	StageReintegrate
)

// Stages lists the runnable stages in order.
var Stages = []Stage{StageExtract, StageConvert, StageTranscribe, StageTranslate, StageSynthesize, StageReintegrate}

var stageNames = [...]string{"none", "extract", "convert", "transcribe", "translate", "synthesize", "reintegrate"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage returns the stage with the given name.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Stages {
		if s.String() == name {
			return s, nil
		}
	}
	return StageNone, fmt.Errorf("unknown stage %q", name)
}

// Tags returns the per-slide artifacts a stage produces. Reintegrate
// produces only the project-level combined package.
func (s Stage) Tags() []manifest.Tag {
	switch s {
	case StageExtract:
		return []manifest.Tag{manifest.TagRawAudio}
	case StageConvert:
		return []manifest.Tag{manifest.TagConvertedWAV}
	case StageTranscribe:
		return []manifest.Tag{manifest.TagTranscript}
	case StageTranslate:
		return []manifest.Tag{manifest.TagTranslation, manifest.TagSlideText}
	case StageSynthesize:
		return []manifest.Tag{manifest.TagTTSAudio}
	}
	return nil
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
