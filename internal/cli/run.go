package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridmate/fieldsync/internal/fieldsync"
)

// NewRunCommand triggers one synchronization run from the terminal.
func NewRunCommand(root *RootOptions) *cobra.Command {
	var mode string
	var fieldKeys []string
	var sourceColumn string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the field synchronization workflow once",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(root.ConfigPath)
			if err != nil {
				return err
			}
			runner, err := comps.newRunner(nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			catalog := comps.registry.Load(ctx)
			fields := checkFields(catalog, fieldKeys)
			source := strings.TrimSpace(sourceColumn)
			if source == "" {
				source = comps.cfg.Sync.SourceColumn
			}
			report, err := runner.Run(ctx, fieldsync.RunRequest{
				Mode:         fieldsync.SelectionMode(mode),
				Fields:       fields,
				SourceColumn: source,
			})
			if err != nil {
				return err
			}
			if root.Format == "json" {
				encoded, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
				return nil
			}
			cmd.Print(report.RenderText())
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(fieldsync.ModeMulti), "selection mode (single|multi)")
	cmd.Flags().StringSliceVar(&fieldKeys, "fields", nil, "catalog keys to sync (default: catalog defaults)")
	cmd.Flags().StringVar(&sourceColumn, "source-column", "", "column holding the source key (default: sync.sourceColumn)")
	return cmd
}

// checkFields marks the requested keys checked; unknown keys are reported
// so a typo does not silently sync nothing.
func checkFields(catalog []fieldsync.FieldSpec, keys []string) []fieldsync.FieldSpec {
	if len(keys) == 0 {
		return catalog
	}
	known := make(map[string]struct{}, len(catalog))
	for _, spec := range catalog {
		known[spec.Key] = struct{}{}
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := known[key]; !ok {
			fmt.Printf("warning: unknown field key %q ignored\n", key)
			continue
		}
		wanted[key] = struct{}{}
	}
	out := make([]fieldsync.FieldSpec, 0, len(catalog))
	for _, spec := range catalog {
		_, checked := wanted[spec.Key]
		spec.Checked = checked
		out = append(out, spec)
	}
	return out
}
