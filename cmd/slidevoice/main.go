// Command slidevoice localizes narrated presentations.
//
// Usage:
//
//	slidevoice [flags] <stage> <deck.pptx>
//
// Stages:
//
//	extract      copy each slide's narration out of the package
//	convert      normalize narration to mono 16 kHz WAV
//	transcribe   speech to text
//	translate    translate narration transcripts and slide text
//	synthesize   text to speech in the target language
//	reintegrate  write {name}_combined.pptx
//	run          all of the above in order
//	status       show per-stage progress
package main

import (
	"fmt"
	"os"

	"github.com/openeduvoice/slidevoice/cmd/slidevoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
