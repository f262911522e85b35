package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewFieldsCommand prints the loaded field catalog.
func NewFieldsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the synchronizable field catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(root.ConfigPath)
			if err != nil {
				return err
			}
			catalog := comps.registry.Load(cmd.Context())
			if root.Format == "json" {
				encoded, err := json.MarshalIndent(catalog, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tDISPLAY NAME\tCATEGORY\tCHECKED")
			for _, spec := range catalog {
				checked := ""
				if spec.Checked {
					checked = "x"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", spec.Key, spec.DisplayName, spec.Category, checked)
			}
			return w.Flush()
		},
	}
}
