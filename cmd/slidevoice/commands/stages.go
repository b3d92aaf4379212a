package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openeduvoice/slidevoice/internal/pipeline"
)

var stageShort = map[pipeline.Stage]string{
	pipeline.StageExtract:     "Copy each slide's narration audio out of the package",
	pipeline.StageConvert:     "Convert extracted audio to mono 16 kHz WAV",
	pipeline.StageTranscribe:  "Transcribe converted narration",
	pipeline.StageTranslate:   "Translate narration transcripts and slide text",
	pipeline.StageSynthesize:  "Synthesize translated narration",
	pipeline.StageReintegrate: "Write the combined package",
}

func stageCmd(stage pipeline.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   stage.String() + " <deck.pptx>",
		Short: stageShort[stage],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			p, _, err := setup(ctx, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.RunStage(ctx, stage)
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

var runCmd = &cobra.Command{
	Use:   "run <deck.pptx>",
	Short: "Run every stage in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, log, err := setup(ctx, args[0])
		if err != nil {
			return err
		}
		defer p.Close()

		results, err := p.Run(ctx)
		failed := 0
		for _, res := range results {
			printResult(cmd.OutOrStdout(), res)
			failed += res.Failed
		}
		if err != nil {
			return err
		}
		if failed > 0 {
			log.Warn().Int("failed", failed).Msg("some slides failed; re-run to retry them")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", p.Root())
		return nil
	},
}

func printResult(w io.Writer, res *pipeline.StageResult) {
	fmt.Fprintln(w, res.Headline())
	fmt.Fprintln(w, "  "+res.Summary())
	for _, msg := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", msg)
	}
	for _, se := range res.Errors {
		if se.Slide >= 0 {
			fmt.Fprintf(w, "  slide %d: %v\n", se.Slide+1, se.Err)
			continue
		}
		fmt.Fprintf(w, "  %v\n", se)
	}
}
