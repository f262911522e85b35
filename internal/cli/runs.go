package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewRunsCommand lists persisted run history.
func NewRunsCommand(root *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent synchronization runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(root.ConfigPath)
			if err != nil {
				return err
			}
			runs, err := comps.store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if root.Format == "json" {
				encoded, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tOK\tFAILED\tUNCHANGED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					run.ID, run.StartedAt.Format(time.RFC3339), run.Status,
					run.SuccessCount, run.ErrorCount, run.UnchangedCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}
