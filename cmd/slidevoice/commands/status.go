package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openeduvoice/slidevoice/internal/pipeline"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <deck.pptx>",
	Short: "Show how many slides are in each state for every stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, _, err := setup(ctx, args[0])
		if err != nil {
			return err
		}
		defer p.Close()

		st := p.Status()
		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func printStatus(w io.Writer, st *pipeline.Status) {
	fmt.Fprintf(w, "Project: %s\n", st.Root)
	if !st.Extracted {
		fmt.Fprintln(w, "Not extracted yet.")
		return
	}
	fmt.Fprintf(w, "Slides:  %d\n", st.Slides)
	fmt.Fprintf(w, "Stage:   %s\n\n", st.State)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT\tDONE\tSKIPPED\tFAILED\tPENDING")
	for _, c := range st.Tags {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", c.Tag, c.Done, c.Skipped, c.Failed, c.Pending)
	}
	tw.Flush()

	if st.Combined != nil {
		fmt.Fprintf(w, "\nCombined package: %s (%s)\n", st.Combined.Path, st.Combined.Status)
		if st.Combined.Error != "" {
			fmt.Fprintf(w, "  %s\n", st.Combined.Error)
		}
	}
}
